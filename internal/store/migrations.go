package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create sessions and messages",
		SQL: `
			CREATE TABLE sessions (
				id               TEXT PRIMARY KEY,
				stage            TEXT NOT NULL DEFAULT 'COLLECTING',
				data             TEXT NOT NULL DEFAULT '{}',
				institutions     TEXT NOT NULL DEFAULT '[]',
				interactions     INTEGER NOT NULL DEFAULT 0,
				guidance_rounds  INTEGER NOT NULL DEFAULT 0,
				flow_started     INTEGER NOT NULL DEFAULT 0,
				created_at       TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at       TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_sessions_updated ON sessions (updated_at);

			CREATE TABLE messages (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				role        TEXT NOT NULL,
				agent       TEXT NOT NULL DEFAULT '',
				content     TEXT NOT NULL,
				timestamp   TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_messages_session ON messages (session_id, id);
		`,
	},
	{
		Version: 2,
		Name:    "create pipeline events",
		SQL: `
			CREATE TABLE events (
				id          TEXT PRIMARY KEY,
				kind        TEXT NOT NULL,
				session_id  TEXT NOT NULL DEFAULT '',
				fields      TEXT,
				at          TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_events_session ON events (session_id, id);
			CREATE INDEX idx_events_kind ON events (kind, id);
		`,
	},
}
