package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/healthgate/internal/domain"
)

func code(n int) *int { return &n }

func sample(errCritical bool) domain.Report {
	r := domain.Report{
		RunID:     "0123456789abcdef",
		StartedAt: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
		Verdicts: []domain.Verdict{
			{Service: "Backend API", URL: "http://b/health", Critical: true, Status: domain.StatusHealthy, Code: code(200),
				Detail: "HTTP 200 OK", Metadata: map[string]any{"version": "1.2.0", "services": map[string]any{"db": "up"}}},
			{Service: "AI Service", URL: "http://ai/health", Critical: true, Status: domain.StatusWarning, Code: code(503), Detail: "HTTP 503 Service Unavailable"},
			{Service: "Frontend", URL: "http://f/", Critical: errCritical, Status: domain.StatusError, Detail: "connection refused", Suggestion: "service not running"},
			{Service: "Database", URL: "http://b/stats", Status: domain.StatusHealthy, Code: code(200)},
		},
	}
	r.Tally()
	return r
}

func TestText_RendersVerdictsSummaryAndHints(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewText(false).Render(&buf, sample(false)))
	out := buf.String()

	assert.Contains(t, out, "✅ Backend API: healthy")
	assert.Contains(t, out, "⚠️  AI Service: warning")
	assert.Contains(t, out, "⛔ Frontend: error")
	assert.Contains(t, out, "💡 service not running")
	assert.Contains(t, out, "version: 1.2.0")
	assert.Contains(t, out, `services: {"db":"up"}`)
	assert.Contains(t, out, "healthy: 2  warning: 1  error: 1")
	assert.Contains(t, out, "Critical issues detected")
	assert.NotContains(t, out, "critical services down")
	for _, h := range RemediationHints {
		assert.Contains(t, out, h)
	}

	// registry order is kept
	assert.Less(t, strings.Index(out, "Backend API"), strings.Index(out, "AI Service"))
	assert.Less(t, strings.Index(out, "Frontend"), strings.Index(out, "Database"))
}

func TestText_CriticalErrorIsEscalated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewText(false).Render(&buf, sample(true)))
	out := buf.String()

	assert.Contains(t, out, "❌ Frontend: error (critical)")
	assert.Contains(t, out, "critical services down: Frontend")
}

func TestText_DegradedAndHealthyMessages(t *testing.T) {
	r := sample(false)
	r.Verdicts = r.Verdicts[:2]
	r.Tally()
	var buf bytes.Buffer
	require.NoError(t, NewText(false).Render(&buf, r))
	assert.Contains(t, buf.String(), "Degraded but operational")
	assert.NotContains(t, buf.String(), "Remediation hints")

	r.Verdicts = r.Verdicts[:1]
	r.Tally()
	buf.Reset()
	require.NoError(t, NewText(false).Render(&buf, r))
	assert.Contains(t, buf.String(), "All services healthy")
}

func TestText_NoColorMeansNoEscapes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewText(false).Render(&buf, sample(true)))
	assert.NotContains(t, buf.String(), "\x1b[")

	buf.Reset()
	require.NoError(t, NewText(true).Render(&buf, sample(true)))
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestJSON_Document(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON{}.Render(&buf, sample(false)))

	var doc struct {
		RunID    string           `json:"run_id"`
		Overall  string           `json:"overall"`
		ExitCode int              `json:"exit_code"`
		Counts   domain.Counts    `json:"counts"`
		Verdicts []domain.Verdict `json:"verdicts"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "0123456789abcdef", doc.RunID)
	assert.Equal(t, "error", doc.Overall)
	assert.Equal(t, 1, doc.ExitCode)
	assert.Equal(t, domain.Counts{Healthy: 2, Warning: 1, Error: 1}, doc.Counts)
	require.Len(t, doc.Verdicts, 4)
	assert.Nil(t, doc.Verdicts[2].Code)
}

func TestNew_Formats(t *testing.T) {
	r, err := New("json", false)
	require.NoError(t, err)
	assert.IsType(t, JSON{}, r)

	r, err = New("", true)
	require.NoError(t, err)
	assert.IsType(t, &Text{}, r)

	_, err = New("xml", false)
	assert.Error(t, err)
}
