package report

import (
	"encoding/json"
	"io"

	"github.com/hamed0406/healthgate/internal/domain"
)

// Document is the machine-readable form of a report.
type Document struct {
	domain.Report
	Overall  domain.Status `json:"overall"`
	ExitCode int           `json:"exit_code"`
}

func NewDocument(r domain.Report) Document {
	return Document{Report: r, Overall: r.Overall(), ExitCode: r.ExitCode()}
}

type JSON struct {
	Indent bool
}

func (j JSON) Render(w io.Writer, r domain.Report) error {
	enc := json.NewEncoder(w)
	if j.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(NewDocument(r))
}
