package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestEmail_HasLabel(t *testing.T) {
	e := &Email{Labels: []string{"INBOX", "STARRED"}}
	if !e.HasLabel("INBOX") {
		t.Error("expected HasLabel(INBOX) = true")
	}
	if e.HasLabel("TRASH") {
		t.Error("expected HasLabel(TRASH) = false")
	}
}

func TestEmail_Clone(t *testing.T) {
	at := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	e := &Email{ID: "msg-1", Labels: []string{"INBOX"}, ReceivedAt: &at}
	c := e.Clone()
	c.Labels[0] = "TRASH"
	*c.ReceivedAt = at.Add(time.Hour)

	if e.Labels[0] != "INBOX" {
		t.Errorf("original Labels mutated: %v", e.Labels)
	}
	if !e.ReceivedAt.Equal(at) {
		t.Errorf("original ReceivedAt mutated: %v", e.ReceivedAt)
	}
}

func TestSameLabels(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want bool
	}{
		{"both empty", nil, []string{}, true},
		{"same order", []string{"INBOX", "UNREAD"}, []string{"INBOX", "UNREAD"}, true},
		{"different order", []string{"UNREAD", "INBOX"}, []string{"INBOX", "UNREAD"}, true},
		{"duplicates ignored", []string{"INBOX", "INBOX"}, []string{"INBOX"}, true},
		{"extra label", []string{"INBOX"}, []string{"INBOX", "UNREAD"}, false},
		{"different label", []string{"INBOX"}, []string{"TRASH"}, false},
		{"case matters", []string{"inbox"}, []string{"INBOX"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SameLabels(tt.a, tt.b); got != tt.want {
				t.Errorf("SameLabels(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSameContent(t *testing.T) {
	at := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	sameInstant := at.In(time.FixedZone("EST", -5*3600))
	base := Email{ID: "1", Subject: "Hi", ReceivedAt: &at}

	other := base
	other.ReceivedAt = &sameInstant
	if !SameContent(&base, &other) {
		t.Error("same instant in another zone should compare equal")
	}

	other.Subject = "Hello"
	if SameContent(&base, &other) {
		t.Error("different subject should not compare equal")
	}

	noDate := base
	noDate.ReceivedAt = nil
	if SameContent(&base, &noDate) {
		t.Error("nil vs non-nil ReceivedAt should not compare equal")
	}
}

func TestTruncateBody(t *testing.T) {
	short := "hello"
	if got := TruncateBody(short); got != short {
		t.Errorf("TruncateBody(%q) = %q", short, got)
	}

	long := strings.Repeat("a", MaxBodyLength+50)
	if got := TruncateBody(long); len(got) != MaxBodyLength {
		t.Errorf("len(TruncateBody(long)) = %d, want %d", len(got), MaxBodyLength)
	}

	// Multi-byte runes must not be split.
	wide := strings.Repeat("é", MaxBodyLength+1)
	got := TruncateBody(wide)
	if n := len([]rune(got)); n != MaxBodyLength {
		t.Errorf("rune count = %d, want %d", n, MaxBodyLength)
	}
}

func TestParseDate(t *testing.T) {
	loc := time.FixedZone("test", 2*3600)
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"RFC1123Z", "Mon, 02 Jun 2025 15:04:05 -0700", time.Date(2025, 6, 2, 22, 4, 5, 0, time.UTC)},
		{"single digit day", "Mon, 2 Jun 2025 15:04:05 +0000", time.Date(2025, 6, 2, 15, 4, 5, 0, time.UTC)},
		{"no weekday", "2 Jun 2025 15:04:05 +0100", time.Date(2025, 6, 2, 14, 4, 5, 0, time.UTC)},
		{"parenthesized zone", "Mon, 02 Jun 2025 15:04:05 -0700 (PDT)", time.Date(2025, 6, 2, 22, 4, 5, 0, time.UTC)},
		{"ISO 8601 UTC", "2025-06-02T15:04:05Z", time.Date(2025, 6, 2, 15, 4, 5, 0, time.UTC)},
		{"ISO 8601 offset", "2025-06-02T15:04:05+02:00", time.Date(2025, 6, 2, 13, 4, 5, 0, time.UTC)},
		{"naive ISO", "2025-06-02T15:04:05", time.Date(2025, 6, 2, 15, 4, 5, 0, loc)},
		{"naive with space", "2025-06-02 15:04:05", time.Date(2025, 6, 2, 15, 4, 5, 0, loc)},
		{"date only", "2025-06-02", time.Date(2025, 6, 2, 0, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input, loc)
			if err != nil {
				t.Fatalf("ParseDate(%q) error: %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDate_Invalid(t *testing.T) {
	for _, input := range []string{"", "   ", "not a date", "2025-13-45"} {
		if _, err := ParseDate(input, time.UTC); !errors.Is(err, ErrUnparseableDate) {
			t.Errorf("ParseDate(%q) error = %v, want ErrUnparseableDate", input, err)
		}
	}
}

func TestNormalizeDestination(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"inbox", "INBOX"},
		{"Trash", "TRASH"},
		{" spam ", "SPAM"},
		{"FromBoss", "FromBoss"},
		{"Work/Reports", "Work/Reports"},
	}
	for _, tt := range tests {
		if got := NormalizeDestination(tt.in); got != tt.want {
			t.Errorf("NormalizeDestination(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsStateLabel(t *testing.T) {
	if !IsStateLabel("UNREAD") || !IsStateLabel("CATEGORY_SOCIAL") {
		t.Error("expected UNREAD and CATEGORY_SOCIAL to be state labels")
	}
	if IsStateLabel("INBOX") || IsStateLabel("Label_42") {
		t.Error("expected INBOX and Label_42 not to be state labels")
	}
}
