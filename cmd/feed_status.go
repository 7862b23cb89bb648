package cmd

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/flyingcircus/vulnix/internal/log"
	"github.com/flyingcircus/vulnix/vulnix/nvd"
)

var feedStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "display advisory feed cache status",
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runFeedStatusCmd(cmd, args))
	},
}

func init() {
	feedCmd.AddCommand(feedStatusCmd)
}

func runFeedStatusCmd(_ *cobra.Command, _ []string) int {
	curator, err := nvd.NewCurator(appConfig.Feed.ToCuratorConfig())
	if err != nil {
		log.Errorf("could not open feed cache: %+v", err)
		return 1
	}

	status := curator.Status()

	fmt.Println("Location: ", status.Location)
	fmt.Println("Segments: ", status.Segments)
	fmt.Println("Updated:  ", status.LastModified.String())
	if status.Err != nil {
		fmt.Printf("Status:    INVALID [%+v]\n", status.Err)
	} else {
		fmt.Println("Status:    Valid")
	}

	states, err := curator.SegmentStates()
	if err != nil {
		log.Errorf("could not inspect feed cache: %+v", err)
		return 1
	}

	if len(states) > 0 {
		fmt.Println()
	}
	for _, state := range states {
		if state.Err != nil {
			fmt.Printf("  %-10s invalid [%+v]\n", state.Segment, state.Err)
			continue
		}
		fmt.Printf("  %-10s built %s  %s\n", state.Segment, state.LastModified.Format("2006-01-02"), humanize.Bytes(uint64(state.Size)))
	}

	if status.Err != nil {
		return 1
	}
	return 0
}
