package postgres

// migrations holds the metro schema DDL, applied in order by Migrate.
// Every statement is idempotent so Migrate is safe to run at every startup.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS metro_queue (
		seq     BIGSERIAL PRIMARY KEY,
		queue   TEXT NOT NULL,
		payload JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_metro_queue_queue
		ON metro_queue (queue, seq)`,

	`CREATE TABLE IF NOT EXISTS metro_scheduled (
		task_id TEXT NOT NULL,
		queue   TEXT NOT NULL,
		run_at  TIMESTAMPTZ NOT NULL,
		payload JSONB NOT NULL,
		PRIMARY KEY (queue, task_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_metro_scheduled_due
		ON metro_scheduled (queue, run_at)`,

	`CREATE TABLE IF NOT EXISTS metro_batches (
		seq     BIGSERIAL PRIMARY KEY,
		batch   TEXT NOT NULL,
		payload JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_metro_batches_batch
		ON metro_batches (batch, seq)`,

	`CREATE TABLE IF NOT EXISTS metro_batch_start (
		batch      TEXT PRIMARY KEY,
		started_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS metro_locks (
		name       TEXT PRIMARY KEY,
		token      TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS metro_status (
		task_id TEXT PRIMARY KEY,
		status  TEXT NOT NULL,
		error   TEXT NOT NULL DEFAULT ''
	)`,
}
