package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/hamed0406/healthgate/internal/domain"
)

// RemediationHints are printed once when any verdict is an error.
var RemediationHints = []string{
	"Check that every service is started (docker compose ps / process list).",
	"Verify the configured URLs and ports (BACKEND_URL, AI_URL, FRONTEND_URL).",
	"Inspect the failing service's logs for startup or dependency errors.",
	"If the Database check fails while the backend is up, check the backend's database connection.",
}

type Renderer interface {
	Render(w io.Writer, r domain.Report) error
}

// New returns the renderer for format ("text" or "json").
func New(format string, useColor bool) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return NewText(useColor), nil
	case "json":
		return JSON{Indent: true}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text or json)", format)
	}
}

type Text struct {
	green, yellow, red, bold, faint *color.Color
}

func NewText(useColor bool) *Text {
	t := &Text{
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow),
		red:    color.New(color.FgRed, color.Bold),
		bold:   color.New(color.Bold),
		faint:  color.New(color.Faint),
	}
	for _, c := range []*color.Color{t.green, t.yellow, t.red, t.bold, t.faint} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return t
}

func (t *Text) Render(w io.Writer, r domain.Report) error {
	ew := &errWriter{w: w}

	ew.printf("%s\n", t.bold.Sprint("🔍 Service health check"))
	ew.printf("%s\n\n", t.faint.Sprintf("run %s at %s", shortID(r.RunID), r.StartedAt.Format("2006-01-02 15:04:05Z07:00")))

	for _, v := range r.Verdicts {
		t.verdict(ew, v)
	}

	ew.printf("\n%s\n", t.bold.Sprint("📊 Summary"))
	ew.printf("   %s  %s  %s\n",
		t.green.Sprintf("healthy: %d", r.Counts.Healthy),
		t.yellow.Sprintf("warning: %d", r.Counts.Warning),
		t.red.Sprintf("error: %d", r.Counts.Error),
	)
	ew.printf("\n")

	switch r.Overall() {
	case domain.StatusError:
		ew.printf("%s\n", t.red.Sprint("🚨 Critical issues detected"))
		if crit := r.CriticalErrors(); len(crit) > 0 {
			ew.printf("   %s\n", t.red.Sprintf("critical services down: %s", strings.Join(crit, ", ")))
		}
		ew.printf("\n%s\n", t.bold.Sprint("💡 Remediation hints"))
		for _, h := range RemediationHints {
			ew.printf("   - %s\n", h)
		}
	case domain.StatusWarning:
		ew.printf("%s\n", t.yellow.Sprint("⚠️  Degraded but operational"))
	default:
		ew.printf("%s\n", t.green.Sprint("✅ All services healthy"))
	}
	return ew.err
}

func (t *Text) verdict(ew *errWriter, v domain.Verdict) {
	var head string
	switch v.Status {
	case domain.StatusHealthy:
		head = t.green.Sprintf("✅ %s: healthy", v.Service)
	case domain.StatusWarning:
		head = t.yellow.Sprintf("⚠️  %s: warning", v.Service)
	default:
		if v.Critical {
			head = t.red.Sprintf("❌ %s: error (critical)", v.Service)
		} else {
			head = t.yellow.Sprintf("⛔ %s: error", v.Service)
		}
	}
	ew.printf("%s %s\n", head, t.faint.Sprintf("[%.0f ms]", v.LatencyMS))
	ew.printf("   %s\n", t.faint.Sprint(v.URL))
	if v.Detail != "" {
		ew.printf("   %s\n", v.Detail)
	}
	if v.Suggestion != "" {
		ew.printf("   💡 %s\n", v.Suggestion)
	}
	for _, line := range metadataLines(v.Metadata) {
		ew.printf("   %s\n", line)
	}
}

func metadataLines(md map[string]any) []string {
	if len(md) == 0 {
		return nil
	}
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s: %s", k, formatValue(md[k])))
	}
	return out
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
