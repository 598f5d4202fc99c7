package store

// schema mirrors spec.md §3 and §6: foreign keys enforced, ON DELETE
// CASCADE from versions to interactions/performance, ON DELETE SET
// NULL for PromptModifications.previousVersionId. AgentPerformanceLog
// and PerformanceSummary are flat, denormalized tables kept in sync by
// RecordInteraction for the metrics component's quick-access reads —
// they are not a source of truth (interaction_history and
// agent_performance are), just a cache that avoids scanning every
// version's rollup to answer "how is this agent doing overall".
const schema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS agents (
	id                      TEXT PRIMARY KEY,
	name                    TEXT NOT NULL,
	name_lower              TEXT NOT NULL UNIQUE,
	purpose                 TEXT NOT NULL,
	active                  INTEGER NOT NULL DEFAULT 1,
	created_at              TEXT NOT NULL,
	last_modified_at        TEXT NOT NULL,
	base_score              REAL NOT NULL DEFAULT 0,
	total_interactions      INTEGER NOT NULL DEFAULT 0,
	successful_interactions INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS agent_versions (
	id                TEXT PRIMARY KEY,
	agent_id          TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	version_number    INTEGER NOT NULL,
	prompt_text       TEXT NOT NULL,
	comments          TEXT,
	known_issues      TEXT,
	created_at        TEXT NOT NULL,
	created_by        TEXT,
	performance_score REAL NOT NULL DEFAULT 0,
	active            INTEGER NOT NULL DEFAULT 1,
	UNIQUE(agent_id, version_number)
);

CREATE INDEX IF NOT EXISTS idx_versions_agent_active
ON agent_versions(agent_id, active, version_number);

CREATE TABLE IF NOT EXISTS prompt_modifications (
	id                  TEXT PRIMARY KEY,
	version_id          TEXT NOT NULL REFERENCES agent_versions(id) ON DELETE CASCADE,
	previous_version_id TEXT REFERENCES agent_versions(id) ON DELETE SET NULL,
	reason              TEXT NOT NULL,
	change_summary      TEXT NOT NULL,
	performance_before  REAL NOT NULL,
	performance_after   REAL,
	modified_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS agent_performance (
	agent_id              TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	version_id            TEXT NOT NULL REFERENCES agent_versions(id) ON DELETE CASCADE,
	task_type             TEXT NOT NULL,
	correct_responses     INTEGER NOT NULL DEFAULT 0,
	total_attempts        INTEGER NOT NULL DEFAULT 0,
	average_response_time REAL NOT NULL DEFAULT 0,
	last_evaluation_date  TEXT NOT NULL,
	PRIMARY KEY (agent_id, version_id, task_type)
);

CREATE INDEX IF NOT EXISTS idx_performance_lookup
ON agent_performance(agent_id, version_id, task_type);

CREATE TABLE IF NOT EXISTS interaction_history (
	id               TEXT PRIMARY KEY,
	agent_id         TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	version_id       TEXT NOT NULL REFERENCES agent_versions(id) ON DELETE CASCADE,
	task_type        TEXT NOT NULL,
	request          TEXT NOT NULL,
	response         TEXT NOT NULL,
	is_correct       INTEGER,
	processing_time  REAL NOT NULL,
	created_at       TEXT NOT NULL,
	evaluation_notes TEXT
);

CREATE INDEX IF NOT EXISTS idx_interactions_agent_version
ON interaction_history(agent_id, version_id, created_at);

CREATE TABLE IF NOT EXISTS agent_capabilities (
	id          TEXT PRIMARY KEY,
	agent_id    TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	name_lower  TEXT NOT NULL,
	description TEXT,
	rating      REAL NOT NULL DEFAULT 0,
	UNIQUE(agent_id, name_lower)
);

CREATE TABLE IF NOT EXISTS team_compositions (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	name_lower        TEXT NOT NULL UNIQUE,
	chief_agent_id    TEXT NOT NULL REFERENCES agents(id),
	description       TEXT,
	created_at        TEXT NOT NULL,
	performance_score REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS team_members (
	team_id             TEXT NOT NULL REFERENCES team_compositions(id) ON DELETE CASCADE,
	agent_id            TEXT NOT NULL REFERENCES agents(id),
	role                TEXT NOT NULL,
	assignment_reason   TEXT,
	performance_in_team REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (team_id, agent_id)
);

CREATE TABLE IF NOT EXISTS agent_performance_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id    TEXT NOT NULL,
	version_id  TEXT NOT NULL,
	task_type   TEXT NOT NULL,
	is_correct  INTEGER NOT NULL,
	logged_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS performance_summary (
	agent_id        TEXT PRIMARY KEY,
	total_attempts  INTEGER NOT NULL DEFAULT 0,
	total_correct   INTEGER NOT NULL DEFAULT 0,
	updated_at      TEXT NOT NULL
);
`
