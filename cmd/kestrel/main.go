// Package main provides the kestrel CLI entry point.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kestrelai/kestrel/config"
	"github.com/kestrelai/kestrel/llm"
	"github.com/kestrelai/kestrel/metrics"
	"github.com/kestrelai/kestrel/orchestrator"
	"github.com/kestrelai/kestrel/runtime"
	"github.com/kestrelai/kestrel/store"
	"github.com/kestrelai/kestrel/transport"
)

var provider string

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
	}

	rootCmd := &cobra.Command{
		Use:   "kestrel",
		Short: "Multi-agent orchestration runtime",
		Long: `kestrel coordinates specialized language-model agents under the
direction of a Chief agent: it streams completions, parses the
Chief's directives to decide which agents run next, aggregates their
responses, and refines underperforming prompts over time.`,
	}

	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "anthropic", "LLM provider (openai, anthropic, deepseek, gemini)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(refineCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "run [goal]",
		Short: "Run a goal through the Chief-directed tick loop until a final answer, a halt, or a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			return runSession(context.Background(), sessionID, args[0])
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID to resume (a fresh one is generated if omitted)")
	return cmd
}

func refineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refine [agent-id]",
		Short: "Run one refinement pass for an agent, persisting a new prompt version if the meta-prompt suggests one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefine(context.Background(), args[0])
		},
	}
	return cmd
}

// bootstrap opens the store and transport client shared by every
// subcommand, from the settings for --provider.
func bootstrap() (config.Settings, *store.Store, *transport.Client, error) {
	settings, err := config.New(provider)
	if err != nil {
		return config.Settings{}, nil, nil, fmt.Errorf("kestrel: %w", err)
	}

	st, err := store.Open(settings.Store.DatabasePath)
	if err != nil {
		return config.Settings{}, nil, nil, fmt.Errorf("kestrel: open store: %w", err)
	}

	apiKey, err := config.APIKeyFor(provider)
	if err != nil {
		st.Close()
		return config.Settings{}, nil, nil, fmt.Errorf("kestrel: %w", err)
	}

	providerType, err := llm.ParseProviderType(settings.LLM.Provider)
	if err != nil {
		st.Close()
		return config.Settings{}, nil, nil, fmt.Errorf("kestrel: %w", err)
	}
	backend, err := transport.NewBackend(providerType, apiKey, settings.LLM.Model, settings.LLM.MaxTokens, float32(settings.LLM.Temperature))
	if err != nil {
		st.Close()
		return config.Settings{}, nil, nil, fmt.Errorf("kestrel: %w", err)
	}

	return settings, st, transport.NewClient(backend), nil
}

// loadPrompt reads basePromptsPath/name.txt, falling back to
// defaultText if the file is absent.
func loadPrompt(basePromptsPath, name, defaultText string) string {
	data, err := os.ReadFile(filepath.Join(basePromptsPath, name+".txt"))
	if err != nil {
		return defaultText
	}
	return strings.TrimSpace(string(data))
}

const defaultChiefPrompt = `You are the Chief of a multi-agent team. Decide which specialists
to activate, in what order, and review their responses, ending every
reply with exactly one directive block: ACTIVATION_DIRECTIVES,
REQUEST_AGENT_CREATION, ACTIVATE_TEAM, ACTION_ASK_USER, FINAL_ANSWER,
or ACTION_HALT.`

func runSession(ctx context.Context, sessionID, goal string) error {
	settings, st, client, err := bootstrap()
	if err != nil {
		return err
	}
	defer st.Close()

	chiefPrompt := loadPrompt(settings.Orchestration.BasePromptsPath, "chief", defaultChiefPrompt)
	chiefConfig := runtime.NewBuilder("chief").
		Description("Directs the team").
		SystemPrompt(chiefPrompt).
		Build()
	chief := runtime.New(
		chiefConfig, client, settings.Orchestration.DefaultModel, settings.Orchestration.MaxTokens, settings.LLM.Temperature,
	).WithSession(sessionID)

	session := orchestrator.NewSession(sessionID, chief, st)
	if err := rehydrateAgents(ctx, session, st, client, settings); err != nil {
		return err
	}

	aggregator := metrics.NewAggregator()
	refiner := metrics.NewRefiner(client, settings.Orchestration.DefaultModel, settings.Orchestration.MaxTokens,
		settings.LLM.Temperature, settings.Metrics.RefinementAwaitTimeout)
	touched := make(map[string]struct{})

	input := goal
	reader := bufio.NewReader(os.Stdin)

	for {
		result, err := session.Tick(ctx, input)
		if err != nil {
			return fmt.Errorf("kestrel: tick: %w", err)
		}

		if result.Block != nil {
			recordBlock(ctx, st, aggregator, touched, result.Block)
		}
		for _, w := range result.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}

		switch result.Outcome {
		case orchestrator.TickFinal:
			fmt.Printf("[%s]\n%s\n", result.FinalTag, result.FinalPayload)
			refineUnderperformers(ctx, st, refiner, settings.Metrics.PromptRefinementThreshold, touched)
			return nil
		case orchestrator.TickHalt:
			fmt.Printf("halted: %s\n", result.HaltReason)
			refineUnderperformers(ctx, st, refiner, settings.Metrics.PromptRefinementThreshold, touched)
			return nil
		case orchestrator.TickAskUser:
			fmt.Printf("chief asks: %s\n> ", result.Question)
			answer, _ := reader.ReadString('\n')
			input = strings.TrimSpace(answer)
		case orchestrator.TickContinue:
			input = result.NextChiefInput
		}
	}
}

// rehydrateAgents restores a runtime.Runtime for every active agent
// already persisted in the store, so a resumed session can activate
// agents created in a prior run.
func rehydrateAgents(ctx context.Context, session *orchestrator.Session, st *store.Store, client *transport.Client, settings config.Settings) error {
	agents, err := st.ListActiveAgents(ctx)
	if err != nil {
		return fmt.Errorf("kestrel: list agents: %w", err)
	}

	collection := runtime.NewCollection()
	for _, a := range agents {
		version, err := st.GetCurrentAgentVersion(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("kestrel: current version for %s: %w", a.Name, err)
		}
		collection.Add(runtime.NewBuilder(a.Name).
			Description(a.Purpose).
			SystemPrompt(version.PromptText))
	}

	for _, info := range collection.List() {
		fmt.Fprintf(os.Stderr, "rehydrated agent: %s (%s)\n", info.Name, info.Description)
	}
	for _, cfg := range collection.Build() {
		rt := runtime.New(cfg, client, settings.Orchestration.DefaultModel, settings.Orchestration.MaxTokens, settings.LLM.Temperature)
		session.RegisterAgent(cfg.Name, rt)
	}
	return nil
}

// recordBlock persists each specialist's outcome as an interaction and
// folds it into the running aggregate, so C7's analysis has something
// to classify on the next refinement pass.
func recordBlock(ctx context.Context, st *store.Store, aggregator *metrics.Aggregator, touched map[string]struct{}, block *orchestrator.BlockResult) {
	for _, r := range block.Results {
		success := r.Response.Type == runtime.ResponseSuccess
		taskType := metrics.Classify(r.Info.Focus)
		seconds := float64(r.Response.Metadata.ExecutionTimeMs) / 1000.0

		agent, err := st.GetAgentByName(ctx, r.Info.ModuleName)
		if err != nil {
			// A result from an agent the store doesn't know (e.g. one
			// registered without ever being persisted) just skips
			// interaction recording rather than failing the whole tick.
			continue
		}
		if _, err := st.RecordInteraction(ctx, agent.ID, taskType.String(), r.Info.Focus, r.Response.ResultText(), &success, seconds, ""); err != nil {
			fmt.Fprintf(os.Stderr, "warning: record interaction for %s: %v\n", r.Info.ModuleName, err)
		}
		aggregator.RecordOutcome(agent.ID, success, seconds)
		touched[agent.ID] = struct{}{}
	}
}

func runRefine(ctx context.Context, agentID string) error {
	settings, st, client, err := bootstrap()
	if err != nil {
		return err
	}
	defer st.Close()

	refiner := metrics.NewRefiner(client, settings.Orchestration.DefaultModel, settings.Orchestration.MaxTokens,
		settings.LLM.Temperature, settings.Metrics.RefinementAwaitTimeout)

	changed, err := refiner.Refine(ctx, st, agentID)
	if err != nil {
		return fmt.Errorf("kestrel: refine: %w", err)
	}
	if changed {
		fmt.Println("refinement persisted a new prompt version")
	} else {
		fmt.Println("refinement produced no change")
	}
	return nil
}

// refineUnderperformers runs one refinement pass over every agent the
// session recorded interactions for whose overall success rate fell
// below the configured threshold, per the feedback loop's "measured
// performance drives a meta-prompt rewrite" contract.
func refineUnderperformers(ctx context.Context, st *store.Store, refiner *metrics.Refiner, threshold float64, touched map[string]struct{}) {
	for agentID := range touched {
		analysis, err := metrics.Analyze(ctx, st, agentID)
		if err != nil {
			continue
		}
		if analysis.OverallSuccessRate >= threshold {
			continue
		}
		changed, err := refiner.Refine(ctx, st, agentID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: refine %s: %v\n", agentID, err)
			continue
		}
		if changed {
			fmt.Printf("refined agent %s (success rate %.2f below threshold %.2f)\n", agentID, analysis.OverallSuccessRate, threshold)
		}
	}
}
