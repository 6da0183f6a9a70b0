package postgres

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_encadrements",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_sessions",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_messages",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
		{
			Version: 4,
			Name:    "create_progressions_resources",
			UpSQL:   migration004Up,
			DownSQL: migration004Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE ENCADREMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create encadrements table
-- Version: 001
-- One row per student-teacher subscription. Status transitions and billing
-- advancement are applied through conditional UPDATEs on this table.

CREATE TABLE IF NOT EXISTS encadrements (
    id UUID PRIMARY KEY,
    user_id VARCHAR(100) NOT NULL,
    teacher_id VARCHAR(100) NOT NULL,
    formule VARCHAR(30) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'active',
    start_date TIMESTAMP WITH TIME ZONE NOT NULL,
    next_billing_date TIMESTAMP WITH TIME ZONE NOT NULL,
    monthly_amount_cents BIGINT NOT NULL,
    sessions_per_month INTEGER NOT NULL,
    consecutive_billing_failures INTEGER NOT NULL DEFAULT 0,
    billing_grace BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_status CHECK (status IN ('active', 'paused', 'cancelled')),
    CONSTRAINT valid_formule CHECK (formule IN ('essentielle', 'intensive', 'excellence')),
    CONSTRAINT valid_amount CHECK (monthly_amount_cents >= 0),
    CONSTRAINT valid_quota CHECK (sessions_per_month > 0),
    CONSTRAINT distinct_parties CHECK (user_id != teacher_id)
);

CREATE INDEX IF NOT EXISTS idx_encadrements_user ON encadrements(user_id);
CREATE INDEX IF NOT EXISTS idx_encadrements_teacher ON encadrements(teacher_id);
CREATE INDEX IF NOT EXISTS idx_encadrements_status ON encadrements(status);

-- The billing worker scans for due subscriptions; only active ones are billed.
CREATE INDEX IF NOT EXISTS idx_encadrements_billing_due
    ON encadrements(next_billing_date) WHERE status = 'active';

-- At most one non-cancelled encadrement per student-teacher pairing.
CREATE UNIQUE INDEX IF NOT EXISTS idx_encadrements_live_pairing
    ON encadrements(user_id, teacher_id) WHERE status != 'cancelled';

CREATE OR REPLACE FUNCTION update_updated_at_column()
RETURNS TRIGGER AS $$
BEGIN
    NEW.updated_at = NOW();
    RETURN NEW;
END;
$$ language 'plpgsql';

DROP TRIGGER IF EXISTS update_encadrements_updated_at ON encadrements;
CREATE TRIGGER update_encadrements_updated_at
    BEFORE UPDATE ON encadrements
    FOR EACH ROW
    EXECUTE FUNCTION update_updated_at_column();
`

const migration001Down = `
DROP TRIGGER IF EXISTS update_encadrements_updated_at ON encadrements;
DROP FUNCTION IF EXISTS update_updated_at_column();
DROP TABLE IF EXISTS encadrements;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE SESSIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create sessions table
-- Version: 002
-- Sessions are never deleted; cancelled ones stay as records and keep
-- counting against the quota of the cycle they were created in.

CREATE TABLE IF NOT EXISTS sessions (
    id UUID PRIMARY KEY,
    encadrement_id UUID NOT NULL REFERENCES encadrements(id) ON DELETE CASCADE,
    user_id VARCHAR(100) NOT NULL,
    teacher_id VARCHAR(100) NOT NULL,
    date TIMESTAMP WITH TIME ZONE NOT NULL,
    duration_minutes INTEGER NOT NULL,
    subject VARCHAR(200) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'scheduled',
    notes TEXT NOT NULL DEFAULT '',
    resource_ids UUID[] NOT NULL DEFAULT '{}',
    meeting_url TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_session_status CHECK (status IN ('scheduled', 'confirmed', 'completed', 'cancelled')),
    CONSTRAINT valid_duration CHECK (duration_minutes BETWEEN 15 AND 240)
);

CREATE INDEX IF NOT EXISTS idx_sessions_encadrement ON sessions(encadrement_id);
CREATE INDEX IF NOT EXISTS idx_sessions_date ON sessions(date);

-- Quota counting: sessions created inside a billing window, any status.
CREATE INDEX IF NOT EXISTS idx_sessions_quota ON sessions(encadrement_id, created_at);

-- Teacher conflict check and agenda view: cancelled sessions block nothing.
CREATE INDEX IF NOT EXISTS idx_sessions_teacher_calendar
    ON sessions(teacher_id, date) WHERE status != 'cancelled';

-- Reminder job scans confirmed sessions by start time.
CREATE INDEX IF NOT EXISTS idx_sessions_confirmed_upcoming
    ON sessions(date) WHERE status = 'confirmed';
`

const migration002Down = `
DROP TABLE IF EXISTS sessions;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE MESSAGES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create messages table
-- Version: 003
-- Append-only channel per encadrement. created_at is assigned by the
-- database and defines the total order of the channel.

CREATE TABLE IF NOT EXISTS messages (
    id UUID PRIMARY KEY,
    encadrement_id UUID NOT NULL REFERENCES encadrements(id) ON DELETE CASCADE,
    sender_id VARCHAR(100) NOT NULL,
    recipient_id VARCHAR(100) NOT NULL,
    content TEXT NOT NULL,
    read BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT clock_timestamp(),

    CONSTRAINT content_not_empty CHECK (length(content) > 0),
    CONSTRAINT content_bounded CHECK (length(content) <= 4000),
    CONSTRAINT distinct_correspondents CHECK (sender_id != recipient_id)
);

CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(encadrement_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_unread
    ON messages(encadrement_id, recipient_id) WHERE read = FALSE;
`

const migration003Down = `
DROP TABLE IF EXISTS messages;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CREATE PROGRESSIONS AND RESOURCES
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Migration: Create progressions and resources tables
-- Version: 004

-- One row per (encadrement, chapter); upserts follow last-writer-wins on
-- last_updated, which the database assigns.
CREATE TABLE IF NOT EXISTS progressions (
    encadrement_id UUID NOT NULL REFERENCES encadrements(id) ON DELETE CASCADE,
    chapter VARCHAR(80) NOT NULL,
    progress DOUBLE PRECISION NOT NULL,
    notes TEXT NOT NULL DEFAULT '',
    last_updated TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT clock_timestamp(),

    PRIMARY KEY (encadrement_id, chapter),
    CONSTRAINT valid_progress CHECK (progress >= 0 AND progress <= 100)
);

-- Append-only resource catalogue; duplicates are allowed.
CREATE TABLE IF NOT EXISTS resources (
    id UUID PRIMARY KEY,
    encadrement_id UUID NOT NULL REFERENCES encadrements(id) ON DELETE CASCADE,
    title VARCHAR(200) NOT NULL,
    type VARCHAR(20) NOT NULL,
    url TEXT NOT NULL,
    uploaded_by VARCHAR(100) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_resource_type CHECK (type IN ('pdf', 'video', 'link', 'document'))
);

CREATE INDEX IF NOT EXISTS idx_resources_encadrement ON resources(encadrement_id, created_at DESC);
`

const migration004Down = `
DROP TABLE IF EXISTS resources;
DROP TABLE IF EXISTS progressions;
`
