package json

import (
	"bytes"
	"flag"
	"testing"

	"github.com/anchore/go-testutils"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/flyingcircus/vulnix/vulnix/match"
	"github.com/flyingcircus/vulnix/vulnix/presenter/models"
)

var update = flag.Bool("update", false, "update the *.golden files for json presenters")

func assertGolden(t *testing.T, actual []byte) {
	t.Helper()
	if *update {
		testutils.UpdateGoldenFileContents(t, actual)
	}

	var expected = testutils.GetGoldenFileContents(t)

	if !bytes.Equal(expected, actual) {
		dmp := diffmatchpatch.New()
		diffs := dmp.DiffMain(string(expected), string(actual), true)
		t.Errorf("mismatched output:\n%s", dmp.DiffPrettyText(diffs))
	}
}

func TestJSONPresenter(t *testing.T) {
	var buffer bytes.Buffer
	report := models.GenerateReport(t)

	pres := NewPresenter(report)
	if err := pres.Present(&buffer); err != nil {
		t.Fatal(err)
	}

	assertGolden(t, buffer.Bytes())
}

func TestJSONPresenterShowsWhitelisted(t *testing.T) {
	var buffer bytes.Buffer
	report := models.GenerateReport(t)
	report.ShowWhitelisted = true

	pres := NewPresenter(report)
	if err := pres.Present(&buffer); err != nil {
		t.Fatal(err)
	}

	assertGolden(t, buffer.Bytes())
}

func TestJSONPresenterNoFindings(t *testing.T) {
	var buffer bytes.Buffer
	pres := NewPresenter(models.Report{Affected: match.NewMatches()})

	if err := pres.Present(&buffer); err != nil {
		t.Fatal(err)
	}
	if actual := buffer.String(); actual != "[]\n" {
		t.Errorf("expected an empty JSON array, got %q", actual)
	}
}
