// Package evaluate turns raw probe outcomes into verdicts.
package evaluate

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hamed0406/healthgate/internal/domain"
)

// Suggestions is advisory text shown next to an error verdict.
var Suggestions = map[domain.FailureKind]string{
	domain.FailureConnectionRefused: "service not running",
	domain.FailureTimedOut:          "service slow/overloaded",
}

// metadataFields are copied from a JSON health body into Verdict.Metadata.
var metadataFields = []string{"status", "services", "version"}

// Evaluate is a pure function of the target and the outcome. Criticality is
// carried onto the verdict for rendering; it never changes the status.
func Evaluate(t domain.ServiceTarget, o domain.Outcome) domain.Verdict {
	v := domain.Verdict{
		Service:   t.Name,
		URL:       t.URL,
		Critical:  t.Critical,
		LatencyMS: float64(o.Latency.Microseconds()) / 1000,
	}

	if o.Failed() {
		v.Status = domain.StatusError
		if o.Failure == nil {
			v.Detail = "no response"
			return v
		}
		v.Detail = o.Failure.Message
		v.Suggestion = Suggestions[o.Failure.Kind]
		return v
	}

	code := o.Success.StatusCode
	v.Code = &code
	if code >= 200 && code < 300 {
		v.Status = domain.StatusHealthy
	} else {
		v.Status = domain.StatusWarning
	}
	v.Detail = statusText(code)
	v.Metadata = Metadata(o.Success.Body)
	return v
}

// Metadata extracts status, services and version from a JSON object body.
// Anything that is not a JSON object yields nil.
func Metadata(body []byte) map[string]any {
	if len(body) == 0 {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil
	}
	var out map[string]any
	for _, k := range metadataFields {
		val, ok := obj[k]
		if !ok || val == nil {
			continue
		}
		if out == nil {
			out = make(map[string]any, len(metadataFields))
		}
		out[k] = val
	}
	return out
}

func statusText(code int) string {
	if txt := http.StatusText(code); txt != "" {
		return fmt.Sprintf("HTTP %d %s", code, txt)
	}
	return fmt.Sprintf("HTTP %d", code)
}
