// Session drives the per-conversation tick loop (C6, §4.6.3): submit
// the Chief's context, parse its trailing directive, execute it, and
// feed the result back as the Chief's next turn.
//
// Information Hiding:
// - Specialist runtime lookup hidden behind the registered agents map
// - Request-key bookkeeping for the collector hidden behind a tick counter
package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/kestrelai/kestrel/collector"
	"github.com/kestrelai/kestrel/runtime"
	"github.com/kestrelai/kestrel/store"
	"github.com/kestrelai/kestrel/wire"
)

// TickOutcome discriminates what a Session.Tick call produced.
type TickOutcome int

const (
	// TickContinue means the Chief issued an activation or agent-creation
	// directive; NextChiefInput is the feedback to feed into the next tick.
	TickContinue TickOutcome = iota
	// TickAskUser means the Chief is waiting on external input.
	TickAskUser
	// TickFinal means the Chief yielded its terminal answer.
	TickFinal
	// TickHalt means the session stopped, either by Chief request or
	// because the Chief's own turn failed.
	TickHalt
)

// TickResult is the outcome of one Session.Tick call.
type TickResult struct {
	Outcome TickOutcome

	NextChiefInput string // set on TickContinue

	Question string // set on TickAskUser

	FinalTag     string // set on TickFinal
	FinalPayload string

	HaltReason string // set on TickHalt

	Block    *BlockResult // set when an activation block ran
	Warnings []string
}

// Session ties the Chief's runtime, the Scheduler, the Response
// Collector, and the persistence Store together into one conversation.
type Session struct {
	sessionID string

	chief *runtime.Runtime

	mu     sync.RWMutex
	agents map[string]*runtime.Runtime

	scheduler *Scheduler
	collector *collector.Collector
	store     *store.Store

	tickCount int
}

// NewSession creates a Session for one conversation. The Chief runtime
// must already be bound to sessionID (see runtime.Runtime.WithSession).
func NewSession(sessionID string, chief *runtime.Runtime, st *store.Store) *Session {
	s := &Session{
		sessionID: sessionID,
		chief:     chief,
		agents:    make(map[string]*runtime.Runtime),
		collector: collector.New(),
		store:     st,
	}
	s.scheduler = NewScheduler(s.activateOne)
	return s
}

// RegisterAgent makes a specialist runtime activatable by name. The
// runtime is bound to this session so its transcript accumulates
// alongside the Chief's.
func (s *Session) RegisterAgent(name string, rt *runtime.Runtime) {
	rt.WithSession(s.sessionID)
	s.mu.Lock()
	s.agents[name] = rt
	s.mu.Unlock()
}

func (s *Session) agentRuntime(name string) (*runtime.Runtime, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rt, ok := s.agents[name]
	return rt, ok
}

// Tick submits chiefInput as the Chief's next turn, parses the
// resulting directive, and executes it. The caller drives the loop:
// on TickContinue, call Tick again with NextChiefInput; on
// TickAskUser, surface Question to the external collaborator and call
// Tick again with its answer; on TickFinal or TickHalt, the
// conversation is over.
func (s *Session) Tick(ctx context.Context, chiefInput string) (TickResult, error) {
	resp, err := s.runChief(ctx, chiefInput)
	if err != nil {
		return TickResult{}, err
	}
	if !resp.IsSuccess() {
		return TickResult{Outcome: TickHalt, HaltReason: resp.ResultText()}, nil
	}

	directive, err := ParseDirective(resp.Result)
	if err != nil {
		correction := fmt.Sprintf(
			"Your previous response could not be parsed: %v. Respond again, ending with exactly one recognized directive block.",
			err)
		return TickResult{Outcome: TickContinue, NextChiefInput: correction}, nil
	}

	switch directive.Kind {
	case DirectiveAskUser:
		return TickResult{Outcome: TickAskUser, Question: directive.AskUserQuestion, Warnings: directive.Warnings}, nil

	case DirectiveFinal:
		return TickResult{
			Outcome:      TickFinal,
			FinalTag:     directive.FinalTag,
			FinalPayload: directive.FinalPayload,
			Warnings:     directive.Warnings,
		}, nil

	case DirectiveHalt:
		return TickResult{Outcome: TickHalt, HaltReason: directive.HaltReason}, nil

	case DirectiveRequestAgentCreation:
		return s.handleAgentCreation(ctx, directive)

	case DirectiveActivation:
		return s.runActivations(ctx, directive.Activations, directive.Warnings)

	case DirectiveActivateTeam:
		team, members, err := s.resolveTeam(ctx, directive.TeamActivation.ModuleName)
		if err != nil {
			return TickResult{}, err
		}
		activations := ExpandTeam(team, members, directive.TeamActivation)
		// ExpandTeam keys each activation by agent ID; specialist
		// runtimes are registered by agent name.
		for i := range activations {
			agent, err := s.store.GetAgent(ctx, activations[i].ModuleName)
			if err != nil {
				return TickResult{}, err
			}
			activations[i].ModuleName = agent.Name
		}
		return s.runActivations(ctx, activations, directive.Warnings)

	default:
		return TickResult{}, fmt.Errorf("orchestrator: unhandled directive kind %d", directive.Kind)
	}
}

func (s *Session) runChief(ctx context.Context, input string) (runtime.Response, error) {
	var resp runtime.Response
	var gotResponse bool
	for ev := range s.chief.Request(ctx, input, runtime.HistoryFull, nil) {
		if ev.Kind == runtime.EventResponse && ev.Response != nil {
			resp = *ev.Response
			gotResponse = true
		}
	}
	if !gotResponse {
		return runtime.Response{}, fmt.Errorf("orchestrator: chief turn produced no response (context cancelled?)")
	}
	return resp, nil
}

func (s *Session) handleAgentCreation(ctx context.Context, d Directive) (TickResult, error) {
	req := d.AgentCreation
	agentID, err := s.store.AddAgent(ctx, req.Name, req.Purpose, req.PromptBody)
	if err != nil {
		return TickResult{}, err
	}
	for _, capability := range req.Capabilities {
		if _, err := s.store.AddCapability(ctx, agentID, capability, "", 0); err != nil {
			return TickResult{}, err
		}
	}
	feedback := fmt.Sprintf("[AGENT]system[/AGENT][RESPONSE]created agent %q with id %s[/RESPONSE]",
		req.Name, agentID)
	return TickResult{Outcome: TickContinue, NextChiefInput: feedback, Warnings: d.Warnings}, nil
}

func (s *Session) resolveTeam(ctx context.Context, teamName string) (store.Team, []store.TeamMember, error) {
	team, err := s.store.GetTeamByName(ctx, teamName)
	if err != nil {
		return store.Team{}, nil, err
	}
	members, err := s.store.ListTeamMembers(ctx, team.ID)
	if err != nil {
		return store.Team{}, nil, err
	}
	return team, members, nil
}

// runActivations schedules one activation block, waits for the
// Response Collector's completion barrier, and formats the
// specialists' replies for the Chief's next turn.
func (s *Session) runActivations(ctx context.Context, activations []ActivationInfo, warnings []string) (TickResult, error) {
	s.tickCount++
	requestKey := s.sessionID + "-tick-" + strconv.Itoa(s.tickCount)

	names := make([]string, len(activations))
	for i, a := range activations {
		names[i] = a.ModuleName
	}
	done := s.collector.Expect(requestKey, names)

	block, err := s.scheduler.RunBlock(ctx, activations, s.injectedHistoryFor)
	if err != nil {
		return TickResult{}, err
	}
	for _, r := range block.Results {
		s.collector.AddResponse(requestKey, r.Info.ModuleName, r.Response.ResultText())
	}

	// A block that stopped before its later phases returns fewer results
	// than activations; the skipped agents never report, so the barrier
	// is only awaited for a block that ran every activation.
	if len(block.Results) == len(activations) {
		select {
		case <-done:
		case <-ctx.Done():
			return TickResult{}, ctx.Err()
		}
	}

	feedback := formatSpecialistFeedback(block.Results)
	s.collector.ClearForRequest(requestKey)

	return TickResult{
		Outcome:        TickContinue,
		NextChiefInput: feedback,
		Block:          &block,
		Warnings:       warnings,
	}, nil
}

// activateOne is the Scheduler's Activator: it looks up the named
// agent's runtime and drains one turn to completion.
func (s *Session) activateOne(ctx context.Context, info ActivationInfo, injected []wire.Message) runtime.Response {
	rt, ok := s.agentRuntime(info.ModuleName)
	if !ok {
		return runtime.NewFailureResponse(fmt.Sprintf("unknown agent %q", info.ModuleName), 0, info.ModuleName)
	}
	var resp runtime.Response
	for ev := range rt.Request(ctx, info.Focus, info.HistoryMode, injected) {
		if ev.Kind == runtime.EventResponse && ev.Response != nil {
			resp = *ev.Response
		}
	}
	return resp
}

// injectedHistoryFor builds the injectedSessionHistory excerpt for an
// activation under HISTORY_MODE=SESSION_AWARE, excerpting the Chief's
// own transcript to the requested message count. The original
// user/assistant role alternation is preserved verbatim rather than
// flattened into one message.
func (s *Session) injectedHistoryFor(info ActivationInfo) []wire.Message {
	if info.HistoryMode != runtime.HistorySummaryOnly {
		return nil
	}
	transcript := s.chief.SessionTranscript()
	if info.SessionHistoryCount > 0 && len(transcript) > info.SessionHistoryCount {
		transcript = transcript[len(transcript)-info.SessionHistoryCount:]
	}
	return transcript
}

// formatSpecialistFeedback renders a completed activation block's
// results as the Chief's next user turn, per §4.6.3 point 4.
func formatSpecialistFeedback(results []ActivationResult) string {
	var b strings.Builder
	for _, r := range results {
		b.WriteString("[AGENT]")
		b.WriteString(r.Info.ModuleName)
		b.WriteString("[/AGENT][RESPONSE]")
		b.WriteString(r.Response.ResultText())
		b.WriteString("[/RESPONSE]")
	}
	return b.String()
}
