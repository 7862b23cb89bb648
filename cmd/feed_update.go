package cmd

import (
	"github.com/spf13/cobra"
	"github.com/wagoodman/go-partybus"

	"github.com/flyingcircus/vulnix/internal/bus"
	"github.com/flyingcircus/vulnix/internal/log"
	"github.com/flyingcircus/vulnix/internal/ui"
	"github.com/flyingcircus/vulnix/vulnix/event"
	"github.com/flyingcircus/vulnix/vulnix/nvd"
)

var feedUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "download the latest advisory feed segments",
	RunE:  runFeedUpdateCmd,
}

func init() {
	feedCmd.AddCommand(feedUpdateCmd)
}

func runFeedUpdateCmd(_ *cobra.Command, _ []string) error {
	reporter, closer, err := reportWriter()
	defer func() {
		if err := closer(); err != nil {
			log.Warnf("unable to write to report destination: %+v", err)
		}
	}()
	if err != nil {
		return err
	}

	return eventLoop(
		startFeedUpdate(),
		setupSignals(),
		eventSubscription,
		func() {},
		ui.Select(isVerbose(), appConfig.Quiet, reporter)...,
	)
}

func startFeedUpdate() <-chan error {
	errs := make(chan error)
	go func() {
		defer close(errs)

		curator, err := nvd.NewCurator(appConfig.Feed.ToCuratorConfig())
		if err != nil {
			errs <- err
			return
		}

		updated, err := curator.Update()
		if err != nil {
			errs <- err
			return
		}

		result := "No advisory feed update available\n"
		if updated {
			result = "Advisory feed updated!\n"
		}

		bus.Publish(partybus.Event{
			Type:  event.NonRootCommandFinished,
			Value: result,
		})
	}()
	return errs
}
