package domain

import "time"

type Status string

const (
	StatusHealthy Status = "healthy"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Verdict is the classified outcome for one target in one run.
type Verdict struct {
	Service    string         `json:"service"`
	URL        string         `json:"url"`
	Critical   bool           `json:"critical"`
	Status     Status         `json:"status"`
	Code       *int           `json:"code,omitempty"` // nil when nothing answered
	Detail     string         `json:"detail,omitempty"`
	Suggestion string         `json:"suggestion,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	LatencyMS  float64        `json:"latency_ms"`
}

type Counts struct {
	Healthy int `json:"healthy"`
	Warning int `json:"warning"`
	Error   int `json:"error"`
}

func (c *Counts) Add(s Status) {
	switch s {
	case StatusHealthy:
		c.Healthy++
	case StatusWarning:
		c.Warning++
	case StatusError:
		c.Error++
	}
}

// Report holds every verdict of one run in registry order, with the
// database proxy check last.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Verdicts   []Verdict `json:"verdicts"`
	Counts     Counts    `json:"counts"`
}

// Tally recomputes Counts from Verdicts.
func (r *Report) Tally() {
	r.Counts = Counts{}
	for _, v := range r.Verdicts {
		r.Counts.Add(v.Status)
	}
}

// ExitCode is 1 when any verdict is an error, 0 otherwise. Warnings and
// criticality never change it.
func (r Report) ExitCode() int {
	if r.Counts.Error > 0 {
		return 1
	}
	return 0
}

// Overall is the worst status in the report.
func (r Report) Overall() Status {
	switch {
	case r.Counts.Error > 0:
		return StatusError
	case r.Counts.Warning > 0:
		return StatusWarning
	default:
		return StatusHealthy
	}
}

// CriticalErrors lists the names of critical services whose verdict is an error.
func (r Report) CriticalErrors() []string {
	var out []string
	for _, v := range r.Verdicts {
		if v.Critical && v.Status == StatusError {
			out = append(out, v.Service)
		}
	}
	return out
}
