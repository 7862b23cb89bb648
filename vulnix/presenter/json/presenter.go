package json

import (
	"encoding/json"
	"io"

	"github.com/flyingcircus/vulnix/vulnix/presenter/models"
)

// Presenter is a generic struct for holding fields needed for reporting
type Presenter struct {
	report models.Report
}

// NewPresenter creates a new JSON presenter
func NewPresenter(report models.Report) *Presenter {
	return &Presenter{
		report: report,
	}
}

// Present writes all findings as a JSON array sorted by pname. The array stays
// flat so that existing consumers of the report format keep working; the richer
// document shape is reserved for templates.
func (pres *Presenter) Present(output io.Writer) error {
	doc := models.NewDocument(pres.report)

	enc := json.NewEncoder(output)
	// prevent > and < from being escaped in the payload
	enc.SetEscapeHTML(false)
	enc.SetIndent("", " ")
	return enc.Encode(doc.Findings)
}
