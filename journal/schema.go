package journal

// Schema is portable between SQLite and Postgres.
const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity DOUBLE PRECISION NOT NULL,
	entry_price DOUBLE PRECISION NOT NULL,
	exit_price DOUBLE PRECISION NOT NULL,
	realized_pnl DOUBLE PRECISION NOT NULL,
	opened_at TIMESTAMP NOT NULL,
	closed_at TIMESTAMP NOT NULL,
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_closed_at ON trades(closed_at);

CREATE TABLE IF NOT EXISTS fills (
	time TIMESTAMP NOT NULL,
	order_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	action TEXT NOT NULL,
	direction TEXT NOT NULL,
	price DOUBLE PRECISION NOT NULL,
	quantity DOUBLE PRECISION NOT NULL,
	balance DOUBLE PRECISION NOT NULL,
	strategy TEXT NOT NULL,
	trade_id TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fills_time ON fills(time);

CREATE TABLE IF NOT EXISTS equity (
	time TIMESTAMP NOT NULL,
	total DOUBLE PRECISION NOT NULL,
	available DOUBLE PRECISION NOT NULL,
	locked DOUBLE PRECISION NOT NULL,
	unrealized_pnl DOUBLE PRECISION NOT NULL,
	open_positions INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`
