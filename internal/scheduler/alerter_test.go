package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hamed0406/healthgate/internal/repo"

	"github.com/hamed0406/healthgate/internal/domain"
	"github.com/hamed0406/healthgate/internal/repo/memory"
)

// ---- shared helpers ----

func verdict(service string, status domain.Status, code *int) domain.Verdict {
	return domain.Verdict{
		Service:   service,
		URL:       "http://" + strings.ToLower(service),
		Status:    status,
		Code:      code,
		Detail:    "test",
		LatencyMS: 12,
	}
}

func push(t *testing.T, s *memory.Store, vs ...domain.Verdict) {
	t.Helper()
	r := domain.Report{RunID: time.Now().String(), StartedAt: time.Now(), FinishedAt: time.Now(), Verdicts: vs}
	r.Tally()
	if err := s.Append(context.Background(), &r); err != nil {
		t.Fatalf("append: %v", err)
	}
}

type sent struct{ title, text string }

type memNotifier struct{ msgs []sent }

func (m *memNotifier) Send(ctx context.Context, title, text string) error {
	m.msgs = append(m.msgs, sent{title, text})
	return nil
}

func intp(i int) *int { return &i }

// ---- tests ----

func TestAlerter_NoReportYet(t *testing.T) {
	store := memory.New(10)
	nt := &memNotifier{}
	al := NewAlerter(zap.NewNop(), store, store, nt, AlerterConfig{AlertOnRecovery: true})
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(nt.msgs) != 0 {
		t.Fatalf("unexpected alerts: %+v", nt.msgs)
	}
}

func TestAlerter_SendsOnDown_RespectsCooldown(t *testing.T) {
	store := memory.New(10)
	nt := &memNotifier{}
	al := NewAlerter(zap.NewNop(), store, store, nt, AlerterConfig{
		AlertOnRecovery: true,
		Cooldown:        1 * time.Minute,
		PollInterval:    10 * time.Millisecond,
	})

	a := verdict("A", domain.StatusError, nil)
	a.Critical = true
	a.Suggestion = "service not running"
	push(t, store, a)

	// first scan -> should alert
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(nt.msgs) != 1 {
		t.Fatalf("want 1 alert, got %d", len(nt.msgs))
	}
	if nt.msgs[0].title != "🔴 Critical service DOWN" {
		t.Fatalf("title=%q", nt.msgs[0].title)
	}
	if !strings.Contains(nt.msgs[0].text, "HTTP: n/a") || !strings.Contains(nt.msgs[0].text, "Suggestion: service not running") {
		t.Fatalf("text=%q", nt.msgs[0].text)
	}

	// second scan same DOWN -> no new alert
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(nt.msgs) != 1 {
		t.Fatalf("want no repeat, got %d", len(nt.msgs))
	}

	// flip to UP (a warning is still up) -> recovery alert bypasses cooldown
	push(t, store, verdict("A", domain.StatusWarning, intp(503)))
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(nt.msgs) != 2 || nt.msgs[1].title != "🟢 Service RECOVERED" {
		t.Fatalf("want recovery alert, got %+v", nt.msgs)
	}
	if !strings.Contains(nt.msgs[1].text, "HTTP: 503") {
		t.Fatalf("text=%q", nt.msgs[1].text)
	}

	// down again inside the cooldown window -> suppressed but recorded
	push(t, store, verdict("A", domain.StatusError, nil))
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(nt.msgs) != 2 {
		t.Fatalf("cooldown should suppress, got %d", len(nt.msgs))
	}
	rec, _ := store.Get(context.Background(), "A")
	if rec == nil || rec.LastUp {
		t.Fatalf("down state should still be recorded: %+v", rec)
	}
}

func TestAlerter_NoRecoveryIfDisabled(t *testing.T) {
	store := memory.New(10)
	nt := &memNotifier{}
	al := NewAlerter(zap.NewNop(), store, store, nt, AlerterConfig{AlertOnRecovery: false})

	push(t, store, verdict("B", domain.StatusHealthy, intp(200)))
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(nt.msgs) != 0 {
		t.Fatalf("unexpected alert: %d", len(nt.msgs))
	}

	push(t, store, verdict("B", domain.StatusError, nil))
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(nt.msgs) != 1 || nt.msgs[0].title != "🔴 Service DOWN" {
		t.Fatalf("want one down alert, got %+v", nt.msgs)
	}

	push(t, store, verdict("B", domain.StatusHealthy, intp(200)))
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(nt.msgs) != 1 {
		t.Fatalf("recovery disabled, got %d", len(nt.msgs))
	}
}

func TestAlerter_FirstSightingUpIsSilent(t *testing.T) {
	store := memory.New(10)
	nt := &memNotifier{}
	al := NewAlerter(zap.NewNop(), store, store, nt, AlerterConfig{AlertOnRecovery: true})

	push(t, store, verdict("C", domain.StatusHealthy, intp(200)))
	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(nt.msgs) != 0 {
		t.Fatalf("nothing to recover from, got %+v", nt.msgs)
	}
}

// flakyNotifier fails its first `failures` sends.
type flakyNotifier struct {
	failures int
	memNotifier
}

func (f *flakyNotifier) Send(ctx context.Context, title, text string) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("slack non-2xx: 500")
	}
	return f.memNotifier.Send(ctx, title, text)
}

func TestAlerter_FailedSendIsRetried(t *testing.T) {
	store := memory.New(10)
	nt := &flakyNotifier{failures: 1}
	core, logs := observer.New(zap.WarnLevel)
	al := NewAlerter(zap.New(core), store, store, nt, AlerterConfig{Cooldown: time.Hour})

	push(t, store, verdict("Backend API", domain.StatusError, nil))

	err := al.scanOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("send failure should surface, got %v", err)
	}
	if logs.FilterMessage("alert_send_error").Len() != 1 {
		t.Fatalf("send failure should be logged")
	}
	if rec, _ := store.Get(context.Background(), "Backend API"); rec != nil {
		t.Fatalf("nothing was delivered, state must not be recorded: %+v", rec)
	}

	if err := al.scanOnce(context.Background()); err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if len(nt.msgs) != 1 || nt.msgs[0].title != "🔴 Service DOWN" {
		t.Fatalf("down alert should be delivered on retry, got %+v", nt.msgs)
	}
	rec, _ := store.Get(context.Background(), "Backend API")
	if rec == nil || rec.LastUp || rec.LastSentAt == nil {
		t.Fatalf("delivered alert should be recorded: %+v", rec)
	}
}

// brokenAlerts fails every state read.
type brokenAlerts struct{ repo.AlertStore }

func (brokenAlerts) Get(context.Context, string) (*repo.AlertRecord, error) {
	return nil, errors.New("connection reset by peer")
}

func TestAlerter_StateReadErrorSkipsService(t *testing.T) {
	store := memory.New(10)
	nt := &memNotifier{}
	core, logs := observer.New(zap.WarnLevel)
	al := NewAlerter(zap.New(core), store, brokenAlerts{store}, nt, AlerterConfig{})

	push(t, store, verdict("Backend API", domain.StatusError, nil))

	for i := 0; i < 3; i++ {
		if err := al.scanOnce(context.Background()); err == nil {
			t.Fatalf("scan %d: state read error should surface", i)
		}
	}
	if len(nt.msgs) != 0 {
		t.Fatalf("no alert may be sent without known state, got %d", len(nt.msgs))
	}
	if logs.FilterMessage("alert_state_error").Len() != 3 {
		t.Fatalf("want 3 alert_state_error logs, got %d", logs.FilterMessage("alert_state_error").Len())
	}
}

func TestAlerter_RunLogsScanErrors(t *testing.T) {
	store := memory.New(10)
	core, logs := observer.New(zap.WarnLevel)
	al := NewAlerter(zap.New(core), brokenLatest{store}, store, &memNotifier{}, AlerterConfig{PollInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = al.Run(ctx)

	if logs.FilterMessage("scan_error").Len() != 1 {
		t.Fatalf("initial scan error should be logged")
	}
}

type brokenLatest struct{ *memory.Store }

func (brokenLatest) Latest(context.Context) (*domain.Report, error) {
	return nil, errors.New("pool closed")
}
