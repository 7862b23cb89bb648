package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flyingcircus/vulnix/internal/log"
	"github.com/flyingcircus/vulnix/vulnix/nvd"
)

var feedDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "delete the cached advisory feed",
	Run: func(cmd *cobra.Command, args []string) {
		ret := runFeedDeleteCmd(cmd, args)
		if ret != 0 {
			fmt.Println("Unable to delete advisory feed cache")
		}
		os.Exit(ret)
	},
}

func init() {
	feedCmd.AddCommand(feedDeleteCmd)
}

func runFeedDeleteCmd(_ *cobra.Command, _ []string) int {
	curator, err := nvd.NewCurator(appConfig.Feed.ToCuratorConfig())
	if err != nil {
		log.Errorf("could not open feed cache: %+v", err)
		return 1
	}

	if err := curator.Delete(); err != nil {
		log.Errorf("unable to delete advisory feed cache: %+v", err)
		return 1
	}

	fmt.Println("Advisory feed cache deleted")

	return 0
}
