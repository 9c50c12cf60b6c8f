package postgres

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_sync_history",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE SYNC HISTORY
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create sync history table
-- Version: 001
-- One row per completed sync. The subjects column keeps the full normalized
-- breakdown so trend queries can drill into individual courses.

CREATE TABLE IF NOT EXISTS sync_history (
    id UUID PRIMARY KEY,
    student_name VARCHAR(100) NOT NULL,
    institution VARCHAR(200) NOT NULL,
    total_subjects INTEGER NOT NULL DEFAULT 0,
    overall_present INTEGER NOT NULL DEFAULT 0,
    overall_total INTEGER NOT NULL DEFAULT 0,
    overall_percentage DECIMAL(5,2) NOT NULL DEFAULT 0.00,
    overall_tier VARCHAR(10) NOT NULL,
    subjects JSONB NOT NULL DEFAULT '[]'::jsonb,
    fetched_at TIMESTAMP WITH TIME ZONE NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_tier CHECK (overall_tier IN ('SAFE', 'CRITICAL', 'LOW')),
    CONSTRAINT valid_counts CHECK (overall_present >= 0 AND overall_total >= overall_present)
);

CREATE INDEX IF NOT EXISTS idx_sync_history_fetched_at ON sync_history(fetched_at DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS sync_history;
`
