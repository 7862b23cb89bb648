package table

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/flyingcircus/vulnix/vulnix/presenter/models"
	"github.com/flyingcircus/vulnix/vulnix/whitelist"
)

const appendWhitelisted = " (whitelisted)"

// Presenter is a generic struct for holding fields needed for reporting
type Presenter struct {
	report models.Report
}

// NewPresenter is a *Presenter constructor
func NewPresenter(report models.Report) *Presenter {
	return &Presenter{
		report: report,
	}
}

// Present creates a human readable table-based reporting
func (pres *Presenter) Present(output io.Writer) error {
	rows := make([][]string, 0)

	columns := []string{"Package", "Version", "Derivation", "Advisory"}
	for _, m := range pres.report.Affected.Sorted() {
		row := []string{
			m.Derivation.Pname,
			m.Derivation.Version,
			m.Derivation.StorePath,
			m.Vulnerability.ID,
		}
		rows = append(rows, row)
	}

	if pres.report.ShowWhitelisted {
		for _, masked := range pres.report.Masked {
			rows = append(rows, maskedRows(masked)...)
		}
	}

	if len(rows) == 0 {
		_, err := io.WriteString(output, "No vulnerable derivations found\n")
		return err
	}

	// remove duplicate rows
	var uniqueRows [][]string
	seen := map[string]bool{}
	for _, row := range rows {
		rowStr := strings.Join(row, "|")
		if seen[rowStr] {
			continue
		}
		seen[rowStr] = true
		uniqueRows = append(uniqueRows, row)
	}

	table := tablewriter.NewWriter(output)

	table.SetHeader(columns)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetAutoFormatHeaders(true)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	table.AppendBulk(uniqueRows)
	table.Render()

	return nil
}

func maskedRows(masked whitelist.Masked) [][]string {
	annotation := appendWhitelisted
	if masked.MatchType == whitelist.MatchTemporary {
		annotation = fmt.Sprintf(" (whitelisted until %s)", masked.Rule.Until.Format("2006-01-02"))
	}

	var advisories []string
	if masked.Derivation.AffectedBy != nil {
		advisories = masked.Derivation.AffectedBy.List()
	}
	sort.Strings(advisories)

	rows := make([][]string, 0, len(advisories))
	for _, id := range advisories {
		rows = append(rows, []string{
			masked.Derivation.Pname,
			masked.Derivation.Version,
			masked.Derivation.StorePath,
			id + annotation,
		})
	}
	return rows
}
