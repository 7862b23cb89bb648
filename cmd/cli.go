package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/flyingcircus/vulnix/internal"
	"github.com/flyingcircus/vulnix/internal/config"
	"github.com/flyingcircus/vulnix/vulnix/presenter"
)

var persistentOpts = config.CliOnlyOptions{}

func init() {
	setGlobalCliOptions()
	setRootFlags(rootCmd.Flags())
}

func setGlobalCliOptions() {
	// setup global CLI options (available on all CLI commands)
	rootCmd.PersistentFlags().StringVarP(&persistentOpts.ConfigPath, "config", "", "", "application config file")

	flag := "quiet"
	rootCmd.PersistentFlags().BoolP(
		flag, "q", false,
		"suppress all logging output",
	)
	if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		fmt.Printf("unable to bind flag '%s': %+v", flag, err)
		os.Exit(2)
	}

	rootCmd.PersistentFlags().CountVarP(&persistentOpts.Verbosity, "verbose", "v", "increase verbosity (-v = info, -vv = debug)")
}

// nolint:funlen
func setRootFlags(flags *pflag.FlagSet) {
	// scan target selection
	flags.BoolP(
		"system", "S", false,
		fmt.Sprintf("scan the current system closure (%s)", currentSystemPath),
	)

	flags.BoolP(
		"gc-roots", "G", false,
		"scan all active garbage collector roots",
	)

	flags.BoolP(
		"requisites", "r", true,
		"expand scan targets to their transitive closure",
	)

	flags.BoolP(
		"no-requisites", "R", false,
		"scan the given targets only, without closure expansion",
	)

	// whitelist options
	flags.StringArrayP(
		"whitelist", "w", nil,
		"whitelist file (TOML or YAML) or URL, may be given multiple times",
	)

	flags.StringP(
		"write-whitelist", "W", "",
		"after the scan, write the merged whitelist including all current findings to this file",
	)

	// feed options
	flags.StringP(
		"mirror", "m", internal.FeedMirrorURL,
		"mirror to fetch advisory feed segments from",
	)

	flags.StringP(
		"cache-dir", "c", "",
		"directory to cache feed segments in",
	)

	// output & formatting options
	flags.StringP(
		"output", "o", "",
		fmt.Sprintf("report output formatter, formats=%v", presenter.Options),
	)

	flags.StringP(
		"template", "t", "",
		"specify the path to a Go template file (requires 'template' output to be selected)",
	)

	flags.StringP(
		"file", "", "",
		"file to write the report output to (default is STDOUT)",
	)

	flags.BoolP(
		"json", "j", false,
		"shorthand for -o json",
	)

	flags.BoolP(
		"show-whitelisted", "s", false,
		"include whitelisted findings in the report",
	)

	flags.BoolP(
		"profile", "", false,
		"write a CPU profile of the scan (development aid)",
	)

	// retired options kept so existing invocations don't break
	flags.BoolP("default-whitelist", "", false, "")
	if err := flags.MarkDeprecated("default-whitelist", "the built-in whitelist is gone, pass explicit -w sources"); err != nil {
		panic(err)
	}
	flags.BoolP("no-default-whitelist", "", false, "")
	if err := flags.MarkDeprecated("no-default-whitelist", "the built-in whitelist is gone, pass explicit -w sources"); err != nil {
		panic(err)
	}
	flags.BoolP("notfixed", "F", false, "")
	if err := flags.MarkDeprecated("notfixed", "fixed/unfixed state is not tracked anymore"); err != nil {
		panic(err)
	}
}

func bindRootConfigOptions(flags *pflag.FlagSet) error {
	if err := viper.BindPFlag("system", flags.Lookup("system")); err != nil {
		return err
	}

	if err := viper.BindPFlag("gc-roots", flags.Lookup("gc-roots")); err != nil {
		return err
	}

	if err := viper.BindPFlag("requisites", flags.Lookup("requisites")); err != nil {
		return err
	}

	if err := viper.BindPFlag("no-requisites", flags.Lookup("no-requisites")); err != nil {
		return err
	}

	if err := viper.BindPFlag("whitelist.sources", flags.Lookup("whitelist")); err != nil {
		return err
	}

	if err := viper.BindPFlag("write-whitelist", flags.Lookup("write-whitelist")); err != nil {
		return err
	}

	if err := viper.BindPFlag("feed.mirror-url", flags.Lookup("mirror")); err != nil {
		return err
	}

	if err := viper.BindPFlag("feed.cache-dir", flags.Lookup("cache-dir")); err != nil {
		return err
	}

	if err := viper.BindPFlag("output", flags.Lookup("output")); err != nil {
		return err
	}

	if err := viper.BindPFlag("output-template-file", flags.Lookup("template")); err != nil {
		return err
	}

	if err := viper.BindPFlag("file", flags.Lookup("file")); err != nil {
		return err
	}

	if err := viper.BindPFlag("json", flags.Lookup("json")); err != nil {
		return err
	}

	if err := viper.BindPFlag("show-whitelisted", flags.Lookup("show-whitelisted")); err != nil {
		return err
	}

	if err := viper.BindPFlag("dev.profile-cpu", flags.Lookup("profile")); err != nil {
		return err
	}

	return nil
}
