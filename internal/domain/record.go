package domain

import "time"

// Record is one stored version of an email with its validity interval
// [ValidFrom, ValidTo). ValidTo is nil for the current version.
type Record struct {
	Email
	ValidFrom time.Time
	ValidTo   *time.Time
	IsCurrent bool
}

// Stats summarises the versioned email table.
type Stats struct {
	UniqueEmails       int
	TotalVersions      int
	CurrentVersions    int
	HistoricalVersions int
}
