package report

import (
	"encoding/json"
	"io"

	"github.com/gowebpki/jcs"
)

// jsonReport drops wall-clock fields so that two runs over the same tree
// produce byte-identical reports.
type jsonReport struct {
	Results  []jsonResult `json:"results"`
	Summary  Summary      `json:"summary"`
	Bless    bool         `json:"bless"`
	Canceled bool         `json:"canceled,omitempty"`
	Exit     int          `json:"exit_code"`
}

type jsonResult struct {
	ID       string   `json:"id"`
	Status   Status   `json:"status"`
	Reasons  []Reason `json:"reasons,omitempty"`
	Warnings []Reason `json:"warnings,omitempty"`
	Blessed  []string `json:"blessed,omitempty"`
	Ignore   string   `json:"ignore,omitempty"`
}

// CanonicalJSON renders the report in RFC 8785 canonical form.
func CanonicalJSON(rep *Report) ([]byte, error) {
	out := jsonReport{
		Results:  make([]jsonResult, 0, len(rep.Results)),
		Summary:  rep.Summary,
		Bless:    rep.Bless,
		Canceled: rep.Canceled,
		Exit:     rep.ExitCode(),
	}
	for _, r := range rep.Results {
		out.Results = append(out.Results, jsonResult{
			ID:       r.ID,
			Status:   r.Status,
			Reasons:  r.Reasons,
			Warnings: r.Warnings,
			Blessed:  r.Blessed,
			Ignore:   r.Ignore,
		})
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return jcs.Transform(raw)
}

// WriteJSON writes the canonical report followed by a newline.
func WriteJSON(w io.Writer, rep *Report) error {
	data, err := CanonicalJSON(rep)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
