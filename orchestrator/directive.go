// Directive grammar parsing for Chief output (C6, §4.6.1).
//
// Information Hiding:
// - Tag-scanning mechanics hidden behind extractTag/lastBlock
// - Modifier defaults and clamping hidden inside parseActivateBlock
package orchestrator

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kestrelai/kestrel/runtime"
)

// DirectiveKind discriminates the variant carried by a Directive.
type DirectiveKind int

const (
	DirectiveActivation DirectiveKind = iota
	DirectiveActivateTeam
	DirectiveRequestAgentCreation
	DirectiveAskUser
	DirectiveFinal
	DirectiveHalt
)

// ActivationInfo is one parsed [ACTIVATE] block.
type ActivationInfo struct {
	ModuleName          string
	Focus               string
	HistoryMode         runtime.HistoryMode
	SessionHistoryCount int
	ExecutionPhase      int
	DependsOn           []string
}

// AgentCreationRequest is the parsed body of a [REQUEST_AGENT_CREATION] block.
type AgentCreationRequest struct {
	Name         string
	Purpose      string
	Capabilities []string
	Header       string
	PromptBody   string
}

// Directive is the result of parsing one Chief response. Exactly one
// of the kind-specific fields is populated, selected by Kind.
type Directive struct {
	Kind DirectiveKind

	Activations []ActivationInfo // DirectiveActivation

	TeamActivation ActivationInfo // DirectiveActivateTeam (ModuleName holds the team name)

	AgentCreation AgentCreationRequest // DirectiveRequestAgentCreation

	AskUserQuestion string // DirectiveAskUser

	FinalTag     string // DirectiveFinal, e.g. "FINAL_ANSWER"
	FinalPayload string

	HaltReason string // DirectiveHalt

	// Warnings accumulates non-fatal issues such as a clamped
	// SESSION_HISTORY_COUNT.
	Warnings []string
}

var finalCloseTagPattern = regexp.MustCompile(`\[/FINAL_[A-Za-z0-9_]+\]\s*$`)
var finalOpenTagPattern = regexp.MustCompile(`\[FINAL_([A-Za-z0-9_]+)\]`)
var modifierPattern = regexp.MustCompile(`\[([A-Z_]+)=([^\]]*)\]`)
var activateBlockPattern = regexp.MustCompile(`(?s)\[ACTIVATE\](.*?)\[/ACTIVATE\]`)

// ParseDirective parses the trailing directive block out of a Chief
// response. The grammar requires the response to END with exactly one
// recognized block; any trailing text after its closing tag is a parse
// error. The parser is greedy on the last occurrence of a given block
// type.
func ParseDirective(text string) (Directive, error) {
	trimmed := strings.TrimRight(text, " \t\r\n")

	switch {
	case strings.HasSuffix(trimmed, "[/ACTIVATION_DIRECTIVES]"):
		return parseActivationDirectives(trimmed)
	case strings.HasSuffix(trimmed, "[/ACTIVATE_TEAM]"):
		return parseActivateTeam(trimmed)
	case strings.HasSuffix(trimmed, "[/REQUEST_AGENT_CREATION]"):
		return parseAgentCreation(trimmed)
	case strings.HasSuffix(trimmed, "[/ACTION_ASK_USER]"):
		return parseAskUser(trimmed)
	case strings.HasSuffix(trimmed, "[/ACTION_HALT]"):
		return parseHalt(trimmed)
	case finalCloseTagPattern.MatchString(trimmed):
		return parseFinal(trimmed)
	default:
		return Directive{}, newParseError("response did not end with a recognized directive block", trimmed)
	}
}

func lastBlock(text, openTag, closeTag string) (string, bool) {
	closeIdx := strings.LastIndex(text, closeTag)
	if closeIdx == -1 {
		return "", false
	}
	if rest := strings.TrimSpace(text[closeIdx+len(closeTag):]); rest != "" {
		return "", false
	}
	openIdx := strings.LastIndex(text[:closeIdx], openTag)
	if openIdx == -1 {
		return "", false
	}
	return text[openIdx+len(openTag) : closeIdx], true
}

func extractTag(text, tag string) (string, bool) {
	open, close := "["+tag+"]", "[/"+tag+"]"
	start := strings.Index(text, open)
	if start == -1 {
		return "", false
	}
	start += len(open)
	rel := strings.Index(text[start:], close)
	if rel == -1 {
		return "", false
	}
	return text[start : start+rel], true
}

func parseActivationDirectives(text string) (Directive, error) {
	inner, ok := lastBlock(text, "[ACTIVATION_DIRECTIVES]", "[/ACTIVATION_DIRECTIVES]")
	if !ok {
		return Directive{}, newParseError("malformed ACTIVATION_DIRECTIVES block", text)
	}

	matches := activateBlockPattern.FindAllStringSubmatch(inner, -1)
	if len(matches) == 0 {
		return Directive{}, newParseError("ACTIVATION_DIRECTIVES contains no ACTIVATE blocks", inner)
	}

	var directive Directive
	directive.Kind = DirectiveActivation
	for _, m := range matches {
		info, warnings, err := parseActivateBlock(m[1])
		if err != nil {
			return Directive{}, err
		}
		directive.Activations = append(directive.Activations, info)
		directive.Warnings = append(directive.Warnings, warnings...)
	}
	return directive, nil
}

// parseActivateBlock parses "name:focus[MOD]*" into an ActivationInfo.
func parseActivateBlock(block string) (ActivationInfo, []string, error) {
	header := block
	if idx := strings.Index(block, "["); idx != -1 {
		header = block[:idx]
	}
	parts := strings.SplitN(header, ":", 2)
	if len(parts) != 2 {
		return ActivationInfo{}, nil, newParseError("ACTIVATE block missing name:focus header", block)
	}

	info := ActivationInfo{
		ModuleName:          strings.TrimSpace(parts[0]),
		Focus:               strings.TrimSpace(parts[1]),
		HistoryMode:         runtime.HistoryFull, // CONVERSATIONAL is the default
		SessionHistoryCount: 0,
		ExecutionPhase:      1,
	}

	var warnings []string
	for _, m := range modifierPattern.FindAllStringSubmatch(block, -1) {
		key, value := m[1], strings.TrimSpace(m[2])
		switch key {
		case "HISTORY_MODE":
			switch value {
			case "CONVERSATIONAL":
				info.HistoryMode = runtime.HistoryFull
			case "SESSION_AWARE":
				info.HistoryMode = runtime.HistorySummaryOnly
			case "STATELESS":
				info.HistoryMode = runtime.HistoryNone
			default:
				return ActivationInfo{}, nil, newParseError("unknown HISTORY_MODE value "+value, block)
			}
		case "SESSION_HISTORY_COUNT":
			n, err := strconv.Atoi(value)
			if err != nil {
				return ActivationInfo{}, nil, newParseError("non-numeric SESSION_HISTORY_COUNT", block)
			}
			if n < 0 {
				n = 0
				warnings = append(warnings, "SESSION_HISTORY_COUNT clamped to 0")
			} else if n > 25 {
				n = 25
				warnings = append(warnings, "SESSION_HISTORY_COUNT clamped to 25")
			}
			info.SessionHistoryCount = n
		case "PHASE":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return ActivationInfo{}, nil, newParseError("PHASE must be an integer >= 1", block)
			}
			info.ExecutionPhase = n
		case "DEPENDS_ON":
			for _, name := range strings.Split(value, ",") {
				if name = strings.TrimSpace(name); name != "" {
					info.DependsOn = append(info.DependsOn, name)
				}
			}
		}
	}
	return info, warnings, nil
}

func parseActivateTeam(text string) (Directive, error) {
	inner, ok := lastBlock(text, "[ACTIVATE_TEAM]", "[/ACTIVATE_TEAM]")
	if !ok {
		return Directive{}, newParseError("malformed ACTIVATE_TEAM block", text)
	}
	info, warnings, err := parseActivateBlock(inner)
	if err != nil {
		return Directive{}, err
	}
	return Directive{Kind: DirectiveActivateTeam, TeamActivation: info, Warnings: warnings}, nil
}

func parseAgentCreation(text string) (Directive, error) {
	inner, ok := lastBlock(text, "[REQUEST_AGENT_CREATION]", "[/REQUEST_AGENT_CREATION]")
	if !ok {
		return Directive{}, newParseError("malformed REQUEST_AGENT_CREATION block", text)
	}

	name, ok := extractTag(inner, "NAME")
	if !ok {
		return Directive{}, newParseError("REQUEST_AGENT_CREATION missing NAME", inner)
	}
	purpose, ok := extractTag(inner, "PURPOSE")
	if !ok {
		return Directive{}, newParseError("REQUEST_AGENT_CREATION missing PURPOSE", inner)
	}
	capabilitiesRaw, _ := extractTag(inner, "CAPABILITIES")
	var capabilities []string
	for _, c := range strings.Split(capabilitiesRaw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			capabilities = append(capabilities, c)
		}
	}

	promptBlock, ok := extractTag(inner, "PROMPT")
	if !ok {
		return Directive{}, newParseError("REQUEST_AGENT_CREATION missing PROMPT", inner)
	}
	header, _ := extractTag(promptBlock, "HEADER")
	body := promptBlock
	if idx := strings.Index(promptBlock, "[/HEADER]"); idx != -1 {
		body = promptBlock[idx+len("[/HEADER]"):]
	}

	return Directive{
		Kind: DirectiveRequestAgentCreation,
		AgentCreation: AgentCreationRequest{
			Name:         strings.TrimSpace(name),
			Purpose:      strings.TrimSpace(purpose),
			Capabilities: capabilities,
			Header:       strings.TrimSpace(header),
			PromptBody:   strings.TrimSpace(body),
		},
	}, nil
}

func parseAskUser(text string) (Directive, error) {
	inner, ok := lastBlock(text, "[ACTION_ASK_USER]", "[/ACTION_ASK_USER]")
	if !ok {
		return Directive{}, newParseError("malformed ACTION_ASK_USER block", text)
	}
	return Directive{Kind: DirectiveAskUser, AskUserQuestion: strings.TrimSpace(inner)}, nil
}

func parseHalt(text string) (Directive, error) {
	inner, ok := lastBlock(text, "[ACTION_HALT]", "[/ACTION_HALT]")
	if !ok {
		return Directive{}, newParseError("malformed ACTION_HALT block", text)
	}
	return Directive{Kind: DirectiveHalt, HaltReason: strings.TrimSpace(inner)}, nil
}

func parseFinal(text string) (Directive, error) {
	closeMatch := finalCloseTagPattern.FindString(text)
	tagName := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(closeMatch), "[/"), "]")

	openTag := "[FINAL_" + strings.TrimPrefix(tagName, "FINAL_") + "]"
	inner, ok := lastBlock(text, openTag, "[/"+tagName+"]")
	if !ok {
		return Directive{}, newParseError("malformed "+tagName+" block", text)
	}
	return Directive{Kind: DirectiveFinal, FinalTag: tagName, FinalPayload: strings.TrimSpace(inner)}, nil
}
