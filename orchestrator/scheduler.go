// Phase-parallel activation scheduling (C6, §4.6.2).
//
// Information Hiding:
// - Per-phase completion signaling hidden behind a module-name-keyed
//   channel map
// - Cycle detection hidden inside detectCycle
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/kestrelai/kestrel/runtime"
	"github.com/kestrelai/kestrel/store"
	"github.com/kestrelai/kestrel/wire"
)

// Activator runs one agent's activation and returns its terminal
// Response. Implementations typically drain a runtime.Runtime's
// Request channel to completion.
type Activator func(ctx context.Context, info ActivationInfo, injectedHistory []wire.Message) runtime.Response

// ActivationResult pairs an ActivationInfo with the Response its
// activation produced.
type ActivationResult struct {
	Info     ActivationInfo
	Response runtime.Response
}

// BlockStatus summarizes how an activation block concluded.
type BlockStatus int

const (
	BlockSuccess BlockStatus = iota
	BlockPartialFailure
)

// BlockResult is the outcome of running a full set of phased activations.
type BlockResult struct {
	Results []ActivationResult
	Status  BlockStatus
}

// InjectedHistory builds the injectedSessionHistory excerpt for an
// activation whose HistoryMode requires it, per §4.6.2 point 5.
type InjectedHistory func(info ActivationInfo) []wire.Message

// Scheduler runs activation blocks per §4.6.2: grouped by phase
// ascending, parallel within a phase via errgroup, strictly sequential
// across phases, with per-phase dependsOn resolution and upfront cycle
// detection.
type Scheduler struct {
	activate Activator
}

// NewScheduler creates a Scheduler that runs each activation via activate.
func NewScheduler(activate Activator) *Scheduler {
	return &Scheduler{activate: activate}
}

// RunBlock runs a full activation block to completion. No event from
// phase K+1 is ever observed before all phase-K activations have
// completed (errgroup.Wait() for phase K returns before phase K+1's
// errgroup is even constructed).
func (s *Scheduler) RunBlock(ctx context.Context, activations []ActivationInfo, injected InjectedHistory) (BlockResult, error) {
	phases := groupByPhase(activations)
	phaseNumbers := sortedPhases(phases)

	completion := make(map[string]chan struct{}, len(activations))
	for _, a := range activations {
		completion[a.ModuleName] = make(chan struct{})
	}

	var (
		resultsMu sync.Mutex
		results   []ActivationResult
		fatal     atomic.Bool
	)

	for _, phaseNum := range phaseNumbers {
		if fatal.Load() {
			break
		}
		phaseActivations := phases[phaseNum]
		if err := detectCycle(phaseActivations); err != nil {
			resultsMu.Lock()
			out := results
			resultsMu.Unlock()
			return BlockResult{Results: out, Status: BlockPartialFailure}, err
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, info := range phaseActivations {
			info := info
			g.Go(func() error {
				defer close(completion[info.ModuleName])
				for _, dep := range info.DependsOn {
					ch, ok := completion[dep]
					if !ok {
						continue
					}
					select {
					case <-ch:
					case <-gctx.Done():
						return gctx.Err()
					}
				}

				resp := s.activate(gctx, info, injected(info))

				resultsMu.Lock()
				results = append(results, ActivationResult{Info: info, Response: resp})
				resultsMu.Unlock()

				if !resp.IsSuccess() {
					fatal.Store(true)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			resultsMu.Lock()
			out := results
			resultsMu.Unlock()
			return BlockResult{Results: out, Status: BlockPartialFailure}, err
		}
	}

	status := BlockSuccess
	if fatal.Load() {
		status = BlockPartialFailure
	}
	return BlockResult{Results: results, Status: status}, nil
}

func groupByPhase(activations []ActivationInfo) map[int][]ActivationInfo {
	phases := make(map[int][]ActivationInfo)
	for _, a := range activations {
		phases[a.ExecutionPhase] = append(phases[a.ExecutionPhase], a)
	}
	return phases
}

func sortedPhases(phases map[int][]ActivationInfo) []int {
	nums := make([]int, 0, len(phases))
	for n := range phases {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// detectCycle runs Kahn's algorithm over one phase's dependsOn edges,
// restricted to dependencies on agents within the same phase (a
// dependency on an agent from an earlier phase is already satisfied by
// the time this phase starts, so it cannot participate in a cycle).
func detectCycle(acts []ActivationInfo) error {
	inPhase := make(map[string]bool, len(acts))
	for _, a := range acts {
		inPhase[a.ModuleName] = true
	}

	indegree := make(map[string]int, len(acts))
	adjacency := make(map[string][]string)
	for _, a := range acts {
		indegree[a.ModuleName] = 0
	}
	for _, a := range acts {
		for _, dep := range a.DependsOn {
			if !inPhase[dep] {
				continue
			}
			adjacency[dep] = append(adjacency[dep], a.ModuleName)
			indegree[a.ModuleName]++
		}
	}

	queue := make([]string, 0, len(acts))
	for name, d := range indegree {
		if d == 0 {
			queue = append(queue, name)
		}
	}
	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		for _, m := range adjacency[n] {
			indegree[m]--
			if indegree[m] == 0 {
				queue = append(queue, m)
			}
		}
	}
	if visited != len(acts) {
		return ErrCycle
	}
	return nil
}

// ExpandTeam expands an [ACTIVATE_TEAM] directive into one
// ActivationInfo per team member, Chief first, all inheriting the
// team's historyMode/sessionHistoryCount and placed in phase 1 with no
// dependencies, per §4.6.2 point 4.
func ExpandTeam(team store.Team, members []store.TeamMember, base ActivationInfo) []ActivationInfo {
	ordered := make([]store.TeamMember, 0, len(members))
	var chief *store.TeamMember
	for i := range members {
		if members[i].AgentID == team.ChiefAgentID {
			chief = &members[i]
			continue
		}
		ordered = append(ordered, members[i])
	}
	if chief != nil {
		ordered = append([]store.TeamMember{*chief}, ordered...)
	}

	out := make([]ActivationInfo, 0, len(ordered))
	for _, m := range ordered {
		out = append(out, ActivationInfo{
			ModuleName:          m.AgentID,
			Focus:               base.Focus,
			HistoryMode:         base.HistoryMode,
			SessionHistoryCount: base.SessionHistoryCount,
			ExecutionPhase:      1,
		})
	}
	return out
}
