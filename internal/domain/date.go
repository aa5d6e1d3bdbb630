package domain

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// ErrUnparseableDate is returned when no known layout matches a date string.
var ErrUnparseableDate = errors.New("unparseable date")

// zonedLayouts carry an explicit zone; the parsed value keeps it.
var zonedLayouts = []string{
	time.RFC1123Z,                           // "Mon, 02 Jan 2006 15:04:05 -0700"
	time.RFC1123,                            // "Mon, 02 Jan 2006 15:04:05 MST"
	time.RFC822Z,                            // "02 Jan 06 15:04 -0700"
	time.RFC822,                             // "02 Jan 06 15:04 MST"
	"Mon, 2 Jan 2006 15:04:05 -0700",        // single-digit day
	"Mon, 2 Jan 2006 15:04:05 MST",          // single-digit day with named zone
	"2 Jan 2006 15:04:05 -0700",             // no weekday
	"Mon, 02 Jan 2006 15:04:05 -0700 (MST)", // with parenthesized zone
	time.RFC3339Nano,                        // ISO 8601
	"2006-01-02T15:04:05Z0700",              // ISO 8601 basic offset
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05-07",
}

// naiveLayouts have no zone and are read in the caller's location.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
	"Mon, 2 Jan 2006 15:04:05",
	"2 Jan 2006 15:04:05",
}

// ParseDate parses the date formats found in email headers and ISO 8601
// timestamps. Strings without zone information are interpreted in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty string", ErrUnparseableDate)
	}
	if loc == nil {
		loc = time.Local
	}

	if t, err := mail.ParseDate(s); err == nil {
		return t, nil
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableDate, s)
}
