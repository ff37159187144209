package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hamed0406/healthgate/internal/domain"
	"github.com/hamed0406/healthgate/internal/report"
)

func apiStub(t *testing.T, latest *domain.Report) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/reports/latest":
			if latest == nil {
				http.NotFound(w, r)
				return
			}
			_ = json.NewEncoder(w).Encode(report.NewDocument(*latest))
		case r.Method == http.MethodPost && r.URL.Path == "/api/runs":
			if r.Header.Get("X-API-Key") != "adm" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			rep := domain.Report{RunID: "manual", Verdicts: []domain.Verdict{{Service: "Backend API", Status: domain.StatusHealthy}}}
			rep.Tally()
			_ = json.NewEncoder(w).Encode(report.NewDocument(rep))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestRun_LatestWithErrorExitsOne(t *testing.T) {
	rep := domain.Report{RunID: "r1", Verdicts: []domain.Verdict{
		{Service: "Backend API", Status: domain.StatusHealthy},
		{Service: "Frontend", Status: domain.StatusError, Suggestion: "service not running"},
	}}
	rep.Tally()
	ts := apiStub(t, &rep)

	var out, errb bytes.Buffer
	code := run(context.Background(), []string{"--api", ts.URL, "--no-color"}, &out, &errb)
	if code != 1 {
		t.Fatalf("exit=%d want 1; stderr=%s", code, errb.String())
	}
	if !strings.Contains(out.String(), "⛔ Frontend: error") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestRun_TriggerNeedsAdminKey(t *testing.T) {
	ts := apiStub(t, nil)

	var out, errb bytes.Buffer
	if code := run(context.Background(), []string{"--api", ts.URL, "--run", "--key", "pub"}, &out, &errb); code != 1 {
		t.Fatalf("exit=%d want 1", code)
	}
	if !strings.Contains(errb.String(), "403") {
		t.Fatalf("stderr=%q", errb.String())
	}

	out.Reset()
	if code := run(context.Background(), []string{"--api", ts.URL, "--run", "--key", "adm", "--format", "json"}, &out, &errb); code != 0 {
		t.Fatalf("exit=%d want 0", code)
	}
	if !strings.Contains(out.String(), `"run_id": "manual"`) {
		t.Fatalf("unexpected json: %s", out.String())
	}
}

func TestRun_NoReportYet(t *testing.T) {
	ts := apiStub(t, nil)
	var out, errb bytes.Buffer
	if code := run(context.Background(), []string{"--api", ts.URL}, &out, &errb); code != 1 {
		t.Fatalf("exit=%d want 1", code)
	}
	if !strings.Contains(errb.String(), "no report yet") {
		t.Fatalf("stderr=%q", errb.String())
	}
}

func TestRun_BadFormatIsUsageError(t *testing.T) {
	var out, errb bytes.Buffer
	if code := run(context.Background(), []string{"--format", "xml"}, &out, &errb); code != 2 {
		t.Fatalf("exit=%d want 2", code)
	}
}
