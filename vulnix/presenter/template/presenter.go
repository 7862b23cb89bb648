package template

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/mitchellh/go-homedir"

	"github.com/flyingcircus/vulnix/vulnix/presenter/models"
)

// Presenter renders a report through a user-supplied Go template.
type Presenter struct {
	report           models.Report
	templateFilePath string
}

// NewPresenter returns a presenter for the given template file.
func NewPresenter(report models.Report, templateFilePath string) *Presenter {
	return &Presenter{
		report:           report,
		templateFilePath: templateFilePath,
	}
}

// Present executes the template against the report document.
func (pres *Presenter) Present(output io.Writer) error {
	expandedPath, err := homedir.Expand(pres.templateFilePath)
	if err != nil {
		return fmt.Errorf("unable to expand template path %q: %w", pres.templateFilePath, err)
	}

	templateContents, err := os.ReadFile(expandedPath)
	if err != nil {
		return fmt.Errorf("unable to get output template: %w", err)
	}

	tmpl, err := template.New(expandedPath).Funcs(FuncMap).Parse(string(templateContents))
	if err != nil {
		return fmt.Errorf("unable to parse template: %w", err)
	}

	doc := models.NewDocument(pres.report)
	if err := tmpl.Execute(output, doc); err != nil {
		return fmt.Errorf("unable to execute supplied template: %w", err)
	}

	return nil
}

// FuncMap is a function that returns template.FuncMap with custom functions available to template authors.
var FuncMap = func() template.FuncMap {
	f := sprig.HermeticTxtFuncMap()
	f["getLastIndex"] = func(collection interface{}) int {
		if v := reflect.ValueOf(collection); v.Kind() == reflect.Slice {
			return v.Len() - 1
		}

		return -1
	}
	return f
}()
