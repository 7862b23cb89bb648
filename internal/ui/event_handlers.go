package ui

import (
	"fmt"
	"io"

	"github.com/wagoodman/go-partybus"

	vulnixEventParsers "github.com/flyingcircus/vulnix/vulnix/event/parsers"
)

func handleVulnerabilityScanningFinished(event partybus.Event, reportOutput io.Writer) error {
	pres, err := vulnixEventParsers.ParseVulnerabilityScanningFinished(event)
	if err != nil {
		return fmt.Errorf("bad %s event: %w", event.Type, err)
	}

	if err := pres.Present(reportOutput); err != nil {
		return fmt.Errorf("unable to show vulnerability report: %w", err)
	}
	return nil
}

func handleNonRootCommandFinished(event partybus.Event, reportOutput io.Writer) error {
	result, err := vulnixEventParsers.ParseNonRootCommandFinished(event)
	if err != nil {
		return fmt.Errorf("bad %s event: %w", event.Type, err)
	}

	_, err = reportOutput.Write([]byte(*result + "\n"))
	return err
}
