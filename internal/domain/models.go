package domain

import (
	"net/http"
	"time"
)

// ServiceTarget is one named endpoint probed on every run.
type ServiceTarget struct {
	Name     string `json:"name" mapstructure:"name"`
	URL      string `json:"url" mapstructure:"url"`
	Critical bool   `json:"critical" mapstructure:"critical"`
}

type FailureKind string

const (
	FailureTimedOut          FailureKind = "timed_out"
	FailureConnectionRefused FailureKind = "connection_refused"
	FailureOther             FailureKind = "other"
)

// Outcome is the raw result of a single probe. Exactly one of Success or
// Failure is set.
type Outcome struct {
	Success *Success
	Failure *Failure
	Latency time.Duration
}

type Success struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type Failure struct {
	Kind    FailureKind
	Message string
	// Unresolved is set when the host name never resolved, so the request
	// never reached the service.
	Unresolved bool
}

func (o Outcome) Failed() bool { return o.Failure != nil || o.Success == nil }

func Succeeded(code int, header http.Header, body []byte, latency time.Duration) Outcome {
	return Outcome{
		Success: &Success{StatusCode: code, Header: header, Body: body},
		Latency: latency,
	}
}

func Failed(kind FailureKind, msg string, latency time.Duration) Outcome {
	return Outcome{
		Failure: &Failure{Kind: kind, Message: msg},
		Latency: latency,
	}
}
