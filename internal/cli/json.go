package cli

import (
	"time"

	"github.com/lu-zhengda/mailrules/internal/app"
	"github.com/lu-zhengda/mailrules/internal/domain"
	"github.com/lu-zhengda/mailrules/internal/rules"
)

// ---------------------------------------------------------------------------
// Email JSON types (list, history)
// ---------------------------------------------------------------------------

type jsonEmail struct {
	ID         string   `json:"id"`
	ThreadID   string   `json:"thread_id,omitempty"`
	From       string   `json:"from"`
	To         string   `json:"to,omitempty"`
	Subject    string   `json:"subject"`
	ReceivedAt string   `json:"received_at,omitempty"`
	Labels     []string `json:"labels"`
}

func toJSONEmail(e *domain.Email) jsonEmail {
	labels := e.Labels
	if labels == nil {
		labels = []string{}
	}
	return jsonEmail{
		ID:         e.ID,
		ThreadID:   e.ThreadID,
		From:       e.From,
		To:         e.To,
		Subject:    e.Subject,
		ReceivedAt: formatRFC3339(e.ReceivedAt),
		Labels:     labels,
	}
}

func toJSONEmails(emails []domain.Email) []jsonEmail {
	out := make([]jsonEmail, 0, len(emails))
	for i := range emails {
		out = append(out, toJSONEmail(&emails[i]))
	}
	return out
}

type jsonRecord struct {
	jsonEmail
	ValidFrom string `json:"valid_from"`
	ValidTo   string `json:"valid_to,omitempty"`
	IsCurrent bool   `json:"is_current"`
}

func toJSONRecords(records []domain.Record) []jsonRecord {
	out := make([]jsonRecord, 0, len(records))
	for i := range records {
		r := &records[i]
		out = append(out, jsonRecord{
			jsonEmail: toJSONEmail(&r.Email),
			ValidFrom: r.ValidFrom.UTC().Format(time.RFC3339Nano),
			ValidTo:   formatRFC3339(r.ValidTo),
			IsCurrent: r.IsCurrent,
		})
	}
	return out
}

func formatRFC3339(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// ---------------------------------------------------------------------------
// Stats JSON type (stats)
// ---------------------------------------------------------------------------

type jsonStats struct {
	UniqueEmails       int `json:"unique_emails"`
	TotalVersions      int `json:"total_versions"`
	CurrentVersions    int `json:"current_versions"`
	HistoricalVersions int `json:"historical_versions"`
}

func toJSONStats(s domain.Stats) jsonStats {
	return jsonStats{
		UniqueEmails:       s.UniqueEmails,
		TotalVersions:      s.TotalVersions,
		CurrentVersions:    s.CurrentVersions,
		HistoricalVersions: s.HistoricalVersions,
	}
}

// ---------------------------------------------------------------------------
// Run JSON types (process, validate, migrate)
// ---------------------------------------------------------------------------

type jsonProcessSummary struct {
	Emails        int  `json:"emails"`
	Processed     int  `json:"processed"`
	Actions       int  `json:"actions"`
	FailedActions int  `json:"failed_actions"`
	Changed       int  `json:"changed"`
	Versions      int  `json:"versions"`
	DryRun        bool `json:"dry_run"`
}

func toJSONProcessSummary(s *app.ProcessSummary) jsonProcessSummary {
	return jsonProcessSummary{
		Emails:        s.Emails,
		Processed:     s.Matched,
		Actions:       s.Actions,
		FailedActions: s.FailedActions,
		Changed:       s.Changed,
		Versions:      s.Versions(),
		DryRun:        s.DryRun,
	}
}

type jsonValidation struct {
	Valid    bool     `json:"valid"`
	Rules    int      `json:"rules"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func toJSONValidation(r *rules.Report, ruleCount int) jsonValidation {
	v := jsonValidation{
		Valid:    !r.HasErrors(),
		Rules:    ruleCount,
		Errors:   r.Errors,
		Warnings: r.Warnings,
	}
	if v.Errors == nil {
		v.Errors = []string{}
	}
	if v.Warnings == nil {
		v.Warnings = []string{}
	}
	return v
}

type jsonMigration struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

// ---------------------------------------------------------------------------
// Label JSON type (labels)
// ---------------------------------------------------------------------------

type jsonLabel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

func toJSONLabels(labels []domain.Label) []jsonLabel {
	out := make([]jsonLabel, 0, len(labels))
	for _, l := range labels {
		out = append(out, jsonLabel{
			ID:   l.ID,
			Name: l.Name,
			Type: string(l.Type),
		})
	}
	return out
}

// ---------------------------------------------------------------------------
// Action JSON type (auth)
// ---------------------------------------------------------------------------

type jsonAction struct {
	OK      bool   `json:"ok"`
	Action  string `json:"action"`
	Account string `json:"account,omitempty"`
}
