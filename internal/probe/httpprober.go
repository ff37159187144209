package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/hamed0406/healthgate/internal/domain"
)

const (
	DefaultTimeout = 5 * time.Second
	maxBodyBytes   = 1 << 20
)

type HTTPProber struct {
	Client  *http.Client
	Timeout time.Duration
}

func NewHTTPProber(timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPProber{
		Client:  &http.Client{Timeout: timeout},
		Timeout: timeout,
	}
}

// Probe issues one GET and buffers the whole body. The timeout starts at
// request initiation and covers the body read; on expiry the request is
// aborted through its context.
func (p *HTTPProber) Probe(ctx context.Context, target string) domain.Outcome {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return domain.Failed(domain.FailureOther, err.Error(), 0)
	}
	req.Header.Set("Accept", "application/json, text/plain;q=0.9, */*;q=0.8")

	resp, err := p.Client.Do(req)
	if err != nil {
		return p.failure(ctx, err, time.Since(start))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return p.failure(ctx, err, time.Since(start))
	}
	return domain.Succeeded(resp.StatusCode, resp.Header.Clone(), body, time.Since(start))
}

func (p *HTTPProber) failure(ctx context.Context, err error, latency time.Duration) domain.Outcome {
	kind := Classify(ctx, err)
	msg := unwrapURLError(err).Error()
	switch kind {
	case domain.FailureTimedOut:
		msg = fmt.Sprintf("no response within %s", p.Timeout)
	case domain.FailureConnectionRefused:
		msg = "connection refused"
	}
	out := domain.Failed(kind, msg, latency)
	out.Failure.Unresolved = IsDNSError(err)
	return out
}

// IsDNSError reports whether name resolution failed somewhere in err's chain.
func IsDNSError(err error) bool {
	var de *net.DNSError
	return errors.As(err, &de)
}

// Classify maps a transport error to a failure kind. A request whose own
// context hit its deadline is a timeout whatever error the transport
// surfaced for it.
func Classify(ctx context.Context, err error) domain.FailureKind {
	if err == nil {
		return domain.FailureOther
	}
	if ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.FailureTimedOut
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.FailureTimedOut
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return domain.FailureTimedOut
	}
	if errors.Is(err, syscall.ECONNREFUSED) || strings.Contains(strings.ToLower(err.Error()), "connection refused") {
		return domain.FailureConnectionRefused
	}
	return domain.FailureOther
}

func unwrapURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		return ue.Err
	}
	return err
}
