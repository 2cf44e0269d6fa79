package output

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/callgate/callgate/internal/core"
	"github.com/callgate/callgate/internal/core/limiter"
)

// RateLimitRow is one rate-limit key as shown by the CLI.
type RateLimitRow struct {
	Key          string     `json:"key"`
	Count        int        `json:"count"`
	Limit        int        `json:"limit"`
	Remaining    int        `json:"remaining"`
	ResetIn      int        `json:"reset_in_seconds"`
	BlockedFor   int        `json:"blocked_for_seconds,omitempty"`
	ResetAt      time.Time  `json:"reset_at"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
}

// NewRateLimitRow converts limiter info into a row.
func NewRateLimitRow(info *limiter.Info, limit int) RateLimitRow {
	return RateLimitRow{
		Key:          info.Key,
		Count:        info.Count,
		Limit:        limit,
		Remaining:    info.Remaining,
		ResetIn:      info.ResetIn,
		BlockedFor:   info.BlockedFor,
		ResetAt:      info.ResetAt,
		BlockedUntil: info.BlockedUntil,
	}
}

// PhoneCheck is the outcome of validating one number.
type PhoneCheck struct {
	Input       string `json:"input"`
	Normalized  string `json:"normalized,omitempty"`
	Valid       bool   `json:"valid"`
	Reason      string `json:"reason,omitempty"`
	Blacklisted *bool  `json:"blacklisted,omitempty"`
}

func newTable(format Format) table.Writer {
	t := table.NewWriter()
	if format != FormatMarkdown {
		t.SetStyle(table.StyleRounded)
	}
	return t
}

func render(w io.Writer, t table.Writer, format Format) error {
	var rendered string
	if format == FormatMarkdown {
		rendered = t.RenderMarkdown()
	} else {
		rendered = t.Render()
	}
	_, err := fmt.Fprintln(w, rendered)
	return err
}

// WriteRateLimits renders rate-limit rows in format.
func WriteRateLimits(w io.Writer, format Format, rows []RateLimitRow) error {
	if format == FormatJSON {
		if rows == nil {
			rows = []RateLimitRow{}
		}
		return WriteJSON(w, rows)
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "(no stored rate limit state)")
		return err
	}

	t := newTable(format)
	t.AppendHeader(table.Row{"Key", "Count", "Remaining", "Resets In", "Blocked For"})
	blocked := 0
	for _, row := range rows {
		blockedFor := "-"
		if row.BlockedFor > 0 {
			blockedFor = formatSeconds(row.BlockedFor)
			blocked++
		}
		t.AppendRow(table.Row{
			row.Key,
			fmt.Sprintf("%d/%d", row.Count, row.Limit),
			row.Remaining,
			formatSeconds(row.ResetIn),
			blockedFor,
		})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d keys", len(rows)), "", "", "", fmt.Sprintf("%d blocked", blocked)})
	return render(w, t, format)
}

// WriteBlacklist renders blacklist entries in format.
func WriteBlacklist(w io.Writer, format Format, entries []core.BlacklistEntry) error {
	if format == FormatJSON {
		if entries == nil {
			entries = []core.BlacklistEntry{}
		}
		return WriteJSON(w, entries)
	}
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "(blacklist is empty)")
		return err
	}

	t := newTable(format)
	t.AppendHeader(table.Row{"Phone", "Source", "Reason", "Added"})
	for _, entry := range entries {
		reason := entry.Reason
		if reason == "" {
			reason = "-"
		}
		t.AppendRow(table.Row{entry.Phone, entry.Source, reason, entry.AddedAt.UTC().Format(time.RFC3339)})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d numbers", len(entries)), "", "", ""})
	return render(w, t, format)
}

// WritePhoneCheck renders a validation outcome in format.
func WritePhoneCheck(w io.Writer, format Format, check PhoneCheck) error {
	if format == FormatJSON {
		return WriteJSON(w, check)
	}

	status := "valid"
	if !check.Valid {
		status = "invalid"
	}
	t := newTable(format)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"Input", check.Input})
	t.AppendRow(table.Row{"Status", status})
	if check.Normalized != "" {
		t.AppendRow(table.Row{"Normalized", check.Normalized})
	}
	if check.Reason != "" {
		t.AppendRow(table.Row{"Reason", check.Reason})
	}
	if check.Blacklisted != nil {
		t.AppendRow(table.Row{"Blacklisted", *check.Blacklisted})
	}
	return render(w, t, format)
}

func formatSeconds(seconds int) string {
	if seconds <= 0 {
		return "0s"
	}
	return (time.Duration(seconds) * time.Second).String()
}
