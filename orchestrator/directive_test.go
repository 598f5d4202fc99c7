package orchestrator

import (
	"testing"

	"github.com/kestrelai/kestrel/runtime"
)

// S5 — Directive parse.
func TestParseDirectiveActivationBlock(t *testing.T) {
	text := "Some thinking text.\n" +
		"[ACTIVATION_DIRECTIVES]" +
		"[ACTIVATE]Evaluator:Feas[HISTORY_MODE=SESSION_AWARE][SESSION_HISTORY_COUNT=3][/ACTIVATE]" +
		"[ACTIVATE]Coder:Impl[PHASE=2][DEPENDS_ON=Evaluator][/ACTIVATE]" +
		"[/ACTIVATION_DIRECTIVES]"

	d, err := ParseDirective(text)
	if err != nil {
		t.Fatalf("ParseDirective: %v", err)
	}
	if d.Kind != DirectiveActivation {
		t.Fatalf("expected DirectiveActivation, got %v", d.Kind)
	}
	if len(d.Activations) != 2 {
		t.Fatalf("expected 2 activations, got %d", len(d.Activations))
	}

	eval, coder := d.Activations[0], d.Activations[1]
	if eval.ModuleName != "Evaluator" || eval.Focus != "Feas" {
		t.Errorf("unexpected Evaluator activation: %+v", eval)
	}
	if eval.HistoryMode != runtime.HistorySummaryOnly || eval.SessionHistoryCount != 3 {
		t.Errorf("expected SESSION_AWARE/3, got %+v", eval)
	}
	if eval.ExecutionPhase != 1 {
		t.Errorf("expected default phase 1, got %d", eval.ExecutionPhase)
	}

	if coder.ModuleName != "Coder" || coder.Focus != "Impl" {
		t.Errorf("unexpected Coder activation: %+v", coder)
	}
	if coder.ExecutionPhase != 2 {
		t.Errorf("expected phase 2, got %d", coder.ExecutionPhase)
	}
	if len(coder.DependsOn) != 1 || coder.DependsOn[0] != "Evaluator" {
		t.Errorf("expected Coder to depend on Evaluator, got %+v", coder.DependsOn)
	}
}

func TestParseDirectiveRejectsTrailingText(t *testing.T) {
	text := "[ACTION_HALT]done[/ACTION_HALT] trailing garbage"
	if _, err := ParseDirective(text); err == nil {
		t.Fatal("expected parse error for trailing text after closing tag")
	}
}

func TestParseDirectiveGreedyOnLastOccurrence(t *testing.T) {
	text := "[ACTION_HALT]first[/ACTION_HALT] some narration [ACTION_HALT]second[/ACTION_HALT]"
	d, err := ParseDirective(text)
	if err != nil {
		t.Fatalf("ParseDirective: %v", err)
	}
	if d.HaltReason != "second" {
		t.Errorf("expected greedy match on last occurrence, got %q", d.HaltReason)
	}
}

func TestParseDirectiveFinalTag(t *testing.T) {
	d, err := ParseDirective("[FINAL_ANSWER]42[/FINAL_ANSWER]")
	if err != nil {
		t.Fatalf("ParseDirective: %v", err)
	}
	if d.Kind != DirectiveFinal || d.FinalTag != "FINAL_ANSWER" || d.FinalPayload != "42" {
		t.Errorf("unexpected final directive: %+v", d)
	}
}

func TestParseDirectiveAskUser(t *testing.T) {
	d, err := ParseDirective("reasoning...\n[ACTION_ASK_USER]Which environment?[/ACTION_ASK_USER]")
	if err != nil {
		t.Fatalf("ParseDirective: %v", err)
	}
	if d.Kind != DirectiveAskUser || d.AskUserQuestion != "Which environment?" {
		t.Errorf("unexpected ask-user directive: %+v", d)
	}
}

func TestParseDirectiveAgentCreation(t *testing.T) {
	text := "[REQUEST_AGENT_CREATION]" +
		"[NAME]Reviewer[/NAME][PURPOSE]review code[/PURPOSE][CAPABILITIES]go,python[/CAPABILITIES]" +
		"[PROMPT][HEADER]Role[/HEADER]You review pull requests.[/PROMPT]" +
		"[/REQUEST_AGENT_CREATION]"

	d, err := ParseDirective(text)
	if err != nil {
		t.Fatalf("ParseDirective: %v", err)
	}
	if d.Kind != DirectiveRequestAgentCreation {
		t.Fatalf("expected DirectiveRequestAgentCreation, got %v", d.Kind)
	}
	ac := d.AgentCreation
	if ac.Name != "Reviewer" || ac.Purpose != "review code" {
		t.Errorf("unexpected agent creation header: %+v", ac)
	}
	if len(ac.Capabilities) != 2 || ac.Capabilities[0] != "go" || ac.Capabilities[1] != "python" {
		t.Errorf("unexpected capabilities: %+v", ac.Capabilities)
	}
	if ac.Header != "Role" || ac.PromptBody != "You review pull requests." {
		t.Errorf("unexpected prompt body: %+v", ac)
	}
}

func TestParseDirectiveSessionHistoryCountClamped(t *testing.T) {
	text := "[ACTIVATION_DIRECTIVES][ACTIVATE]A:focus[SESSION_HISTORY_COUNT=99][/ACTIVATE][/ACTIVATION_DIRECTIVES]"
	d, err := ParseDirective(text)
	if err != nil {
		t.Fatalf("ParseDirective: %v", err)
	}
	if d.Activations[0].SessionHistoryCount != 25 {
		t.Errorf("expected clamp to 25, got %d", d.Activations[0].SessionHistoryCount)
	}
	if len(d.Warnings) == 0 {
		t.Error("expected a clamp warning")
	}
}

func TestParseDirectiveUnrecognizedTrailingBlockIsError(t *testing.T) {
	if _, err := ParseDirective("just some plain text with no directive"); err == nil {
		t.Fatal("expected parse error")
	}
}
