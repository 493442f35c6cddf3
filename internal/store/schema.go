package store

// The same DDL runs on sqlite and postgres: TEXT keys, BIGINT unix seconds.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		contract_number TEXT NOT NULL,
		user_id TEXT NOT NULL,
		product_name TEXT NOT NULL,
		premium BIGINT NOT NULL,
		status TEXT NOT NULL,
		payment_details TEXT,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_user ON contracts(user_id)`,
	`CREATE TABLE IF NOT EXISTS payment_attempts (
		txn_ref TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL REFERENCES contracts(id),
		amount BIGINT NOT NULL,
		response_code TEXT,
		created_at BIGINT NOT NULL,
		completed_at BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attempts_contract ON payment_attempts(contract_id)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		message TEXT NOT NULL,
		link TEXT,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id)`,
}
