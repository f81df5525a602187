package sqlite

// Schema defines the SQLite database schema
const Schema = `
-- Metric history: one row per (service, metric, timestamp)
CREATE TABLE IF NOT EXISTS performance_metrics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	service TEXT NOT NULL,
	metric_name TEXT NOT NULL,
	value REAL NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	tags_json TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_perf_service_metric ON performance_metrics(service, metric_name);
CREATE INDEX IF NOT EXISTS idx_perf_timestamp ON performance_metrics(timestamp DESC);

-- Cost ledger: append-only, one row per collection cycle per service
CREATE TABLE IF NOT EXISTS cost_tracking (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	service TEXT NOT NULL,
	amount REAL NOT NULL,
	unit TEXT NOT NULL,
	start_date TIMESTAMP NOT NULL,
	end_date TIMESTAMP NOT NULL,
	tags_json TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_cost_service_start ON cost_tracking(service, start_date);
CREATE INDEX IF NOT EXISTS idx_cost_start ON cost_tracking(start_date);

-- Cost anomaly alerts: write-once
CREATE TABLE IF NOT EXISTS cost_alerts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	service TEXT NOT NULL,
	threshold REAL NOT NULL,
	current_amount REAL NOT NULL,
	percentage_increase REAL NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_cost_alerts_timestamp ON cost_alerts(timestamp DESC);

-- Synthetic check history
CREATE TABLE IF NOT EXISTS synthetic_checks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	success BOOLEAN NOT NULL,
	duration_ns INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	timestamp TIMESTAMP NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_checks_name_timestamp ON synthetic_checks(name, timestamp DESC);

-- Incident records from the issue reactor
CREATE TABLE IF NOT EXISTS incidents (
	id TEXT PRIMARY KEY,
	service TEXT NOT NULL,
	status TEXT NOT NULL,
	issues_json TEXT NOT NULL,
	recommendations_json TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_incidents_service ON incidents(service);
CREATE INDEX IF NOT EXISTS idx_incidents_created_at ON incidents(created_at DESC);

-- Chaos experiment state transitions
CREATE TABLE IF NOT EXISTS chaos_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	experiment_id TEXT NOT NULL,
	type TEXT NOT NULL,
	target TEXT NOT NULL,
	state TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	duration_ns INTEGER NOT NULL,
	impact TEXT NOT NULL DEFAULT '',
	recovery TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_chaos_target ON chaos_events(target);
CREATE INDEX IF NOT EXISTS idx_chaos_timestamp ON chaos_events(timestamp DESC);
`
