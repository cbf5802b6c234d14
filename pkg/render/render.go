// Package render prints batch progress and summaries for the CLI.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"scrape-gate/pkg/models"
	"scrape-gate/pkg/session"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

const detailWidth = 60

// Renderer writes to a single stream. It is safe to use as a batch observer.
type Renderer struct {
	mu     sync.Mutex
	w      io.Writer
	format string
}

// NewRenderer validates format and returns a renderer writing to w.
func NewRenderer(w io.Writer, format string) (*Renderer, error) {
	switch format {
	case FormatTable, FormatJSON, FormatYAML:
	case "":
		format = FormatTable
	default:
		return nil, fmt.Errorf("unknown output format %q (supported: table, json, yaml)", format)
	}
	return &Renderer{w: w, format: format}, nil
}

// progressLine is the NDJSON shape of one slot update.
type progressLine struct {
	BatchID string           `json:"batch_id"`
	Index   int              `json:"index"`
	Result  models.UrlResult `json:"result"`
}

// Observe prints one line per resolved slot. Initial and final events are
// silent; Summary prints the end state.
func (r *Renderer) Observe(ev session.Event) {
	if ev.Index < 0 || ev.Index >= len(ev.Results) {
		return
	}
	res := ev.Results[ev.Index]

	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.format {
	case FormatTable:
		resolved := len(ev.Results) - models.CountStatuses(ev.Results)[models.StatusPending]
		fmt.Fprintf(r.w, "[%d/%d] %-15s %s\n", resolved, len(ev.Results), res.Status.Label(), res.URL)
	case FormatJSON:
		line, err := json.Marshal(progressLine{BatchID: ev.BatchID, Index: ev.Index, Result: res})
		if err == nil {
			fmt.Fprintln(r.w, string(line))
		}
	}
}

// Summary prints the final state of a batch.
func (r *Renderer) Summary(snap session.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.format {
	case FormatJSON:
		return writeJSON(r.w, snap)
	case FormatYAML:
		return writeYAML(r.w, snap)
	}

	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSTATUS\tURL\tDETAIL")
	for i, res := range snap.Results {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, res.Status.Label(), res.URL, Detail(res))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(r.w, "\n%d done, %d blocked, %d failed (%s)\n",
		snap.Counts[models.StatusDone], snap.Counts[models.StatusBlocked], snap.Counts[models.StatusFailed],
		elapsed(snap))
	return err
}

// History prints archived batch records.
func (r *Renderer) History(records []models.BatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.format {
	case FormatJSON:
		return writeJSON(r.w, records)
	case FormatYAML:
		return writeYAML(r.w, records)
	}

	if len(records) == 0 {
		_, err := fmt.Fprintln(r.w, "No archived batches.")
		return err
	}
	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tMODE\tURLS\tDONE\tBLOCKED\tFAILED")
	for _, rec := range records {
		c := rec.StatusCounts()
		id := rec.ID
		if rec.Cancelled {
			id += " (cancelled)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			id, rec.CreatedAt.Local().Format("2006-01-02 15:04:05"), rec.Mode,
			len(rec.Results), c[models.StatusDone], c[models.StatusBlocked], c[models.StatusFailed])
	}
	return tw.Flush()
}

// Detail is the one-line explanation shown next to a result.
func Detail(res models.UrlResult) string {
	switch res.Status {
	case models.StatusDone:
		d := firstLine(res.Data)
		if res.TokenCount > 0 {
			d = fmt.Sprintf("%s [~%d tokens]", d, res.TokenCount)
		}
		return d
	case models.StatusBlocked:
		return truncate(res.Reason)
	case models.StatusFailed:
		if res.Reason != "" {
			return truncate(res.Error + " (" + res.Reason + ")")
		}
		return truncate(res.Error)
	}
	return ""
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i]) + " ..."
	}
	return truncate(s)
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= detailWidth {
		return s
	}
	runes := []rune(s)
	return string(runes[:detailWidth-3]) + "..."
}

func elapsed(snap session.Snapshot) string {
	if snap.CompletedAt == nil {
		return "still running"
	}
	return snap.CompletedAt.Sub(snap.CreatedAt).Round(time.Millisecond).String()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
