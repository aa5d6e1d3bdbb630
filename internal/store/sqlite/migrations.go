package sqlite

// Timestamps are stored as fixed-width UTC text so that string order is
// time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS emails (
    email_id    TEXT NOT NULL,
    thread_id   TEXT NOT NULL DEFAULT '',
    from_email  TEXT NOT NULL DEFAULT '',
    to_email    TEXT NOT NULL DEFAULT '',
    subject     TEXT NOT NULL DEFAULT '',
    body        TEXT NOT NULL DEFAULT '',
    received_at TEXT,
    labels      TEXT NOT NULL DEFAULT '[]',
    valid_from  TEXT NOT NULL,
    valid_to    TEXT,
    is_current  INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (email_id, valid_from),
    CHECK (valid_to IS NULL OR valid_to > valid_from),
    CHECK ((is_current = 1 AND valid_to IS NULL) OR (is_current = 0 AND valid_to IS NOT NULL))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_emails_current ON emails(email_id) WHERE is_current = 1;
CREATE INDEX IF NOT EXISTS idx_emails_current_from ON emails(from_email) WHERE is_current = 1;
CREATE INDEX IF NOT EXISTS idx_emails_current_subject ON emails(subject) WHERE is_current = 1;
CREATE INDEX IF NOT EXISTS idx_emails_current_received ON emails(received_at DESC) WHERE is_current = 1;
`
