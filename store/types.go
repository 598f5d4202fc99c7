// Package store implements the durable persistence layer (C4): Agents,
// their versioned prompts, recorded interactions, performance rollups,
// and team composition. A single SQLite database backs the whole
// process; every public method owns its own transaction.
//
// Information Hiding:
// - Schema and migration details encapsulated
// - Score recomputation and running-mean bookkeeping hidden
// - Concurrent recompute deduplication hidden behind singleflight
package store

import "time"

// Agent is the identity row for one runtime agent.
type Agent struct {
	ID                    string
	Name                  string
	Purpose               string
	Active                bool
	CreatedAt             time.Time
	LastModifiedAt        time.Time
	BaseScore             float64
	TotalInteractions     int64
	SuccessfulInteractions int64
}

// AgentVersion is one versioned prompt revision for an Agent. Exactly
// one version per agent has Active == true.
type AgentVersion struct {
	ID               string
	AgentID          string
	VersionNumber    int64
	PromptText       string
	Comments         string
	KnownIssues      string
	CreatedAt        time.Time
	CreatedBy        string
	PerformanceScore float64
	Active           bool
}

// PromptModification records the transition from one version to the
// next, including the before/after performance snapshot used to judge
// whether the change helped.
type PromptModification struct {
	ID                 string
	VersionID          string
	PreviousVersionID  string // empty when there was no predecessor
	Reason             string
	ChangeSummary      string
	PerformanceBefore  float64
	PerformanceAfter   *float64
	ModifiedAt         time.Time
}

// AgentPerformance is the per-(agent, version, taskType) rollup of
// correctness and latency, recomputed on every recorded interaction.
type AgentPerformance struct {
	AgentID            string
	VersionID          string
	TaskType           string
	CorrectResponses   int64
	TotalAttempts      int64
	AverageResponseTime float64
	LastEvaluationDate time.Time
}

// PerformanceSummary is the flat, cross-version, cross-taskType totals
// row for one agent — the quick-access view the metrics component
// reads instead of summing every AgentPerformance rollup row.
type PerformanceSummary struct {
	AgentID       string
	TotalAttempts int64
	TotalCorrect  int64
	UpdatedAt     time.Time
}

// Interaction is an immutable record of one completed agent turn.
type Interaction struct {
	ID              string
	AgentID         string
	VersionID       string
	TaskType        string
	Request         string
	Response        string
	IsCorrect       *bool
	ProcessingTime  float64
	CreatedAt       time.Time
	EvaluationNotes string
}

// AgentCapability is a named, rated skill attributed to an agent.
type AgentCapability struct {
	ID          string
	AgentID     string
	Name        string
	Description string
	Rating      float64
}

// Team groups agents under a chief.
type Team struct {
	ID               string
	Name             string
	ChiefAgentID     string
	Description      string
	CreatedAt        time.Time
	PerformanceScore float64
}

// TeamMember is one agent's membership row within a Team.
type TeamMember struct {
	TeamID           string
	AgentID          string
	Role             string
	AssignmentReason string
	PerformanceInTeam float64
}

// CascadePolicy governs RemoveAgentCompletely's behavior when the
// agent being removed still chiefs a team.
type CascadePolicy int

const (
	// CascadeReject refuses removal while the agent chiefs any team.
	// This is the package default.
	CascadeReject CascadePolicy = iota
	// CascadeLeaveDangling removes the agent and its rows but leaves
	// any Team.ChiefAgentID referencing it unchanged — reproducing the
	// spec's literally-described behavior.
	CascadeLeaveDangling
	// CascadeForce also removes any team the agent chiefs, along with
	// its memberships.
	CascadeForce
)
