package journal

// Schema is the SQLite layout of the trade journal. Money columns hold
// decimal strings so no precision is lost.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	date_from TEXT NOT NULL,
	date_to TEXT NOT NULL,
	instruments INTEGER NOT NULL,
	status TEXT NOT NULL,
	final_capital TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trade_events (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	instrument TEXT NOT NULL,
	action TEXT NOT NULL,
	direction TEXT NOT NULL,
	trade_date TEXT NOT NULL,
	price TEXT NOT NULL,
	volume TEXT NOT NULL,
	entry_price TEXT NOT NULL,
	entry_date TEXT NOT NULL,
	pnl TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trade_events_run ON trade_events(run_id, instrument);
`
