package presenter

import (
	"io"

	"github.com/flyingcircus/vulnix/vulnix/presenter/json"
	"github.com/flyingcircus/vulnix/vulnix/presenter/models"
	"github.com/flyingcircus/vulnix/vulnix/presenter/table"
	"github.com/flyingcircus/vulnix/vulnix/presenter/template"
)

// Presenter is the main interface other Presenters need to implement
type Presenter interface {
	Present(io.Writer) error
}

// GetPresenter retrieves a Presenter that matches a CLI option.
func GetPresenter(option Option, templateFilePath string, report models.Report) Presenter {
	switch option {
	case JSONPresenter:
		return json.NewPresenter(report)
	case TablePresenter:
		return table.NewPresenter(report)
	case TemplatePresenter:
		return template.NewPresenter(report, templateFilePath)
	default:
		return nil
	}
}
