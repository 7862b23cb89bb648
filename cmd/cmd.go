package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/wagoodman/go-partybus"

	"github.com/flyingcircus/vulnix/internal/config"
	"github.com/flyingcircus/vulnix/internal/log"
	"github.com/flyingcircus/vulnix/internal/logger"
	"github.com/flyingcircus/vulnix/internal/version"
	"github.com/flyingcircus/vulnix/vulnix"
	"github.com/flyingcircus/vulnix/vulnix/vulnixerr"
)

var (
	appConfig         *config.Application
	eventBus          *partybus.Bus
	eventSubscription *partybus.Subscription
)

func init() {
	cobra.OnInitialize(
		initRootCmdConfigOptions,
		initAppConfig,
		initLogging,
		logAppConfig,
		logAppVersion,
		initEventBus,
	)
}

// Execute runs the CLI and translates the error conditions the scan can end
// in into the exit codes scripts depend on:
//
//	0  no (unmasked) vulnerabilities found
//	1  only whitelisted vulnerabilities found
//	2  vulnerabilities found, or the scan failed
//	3  no scan targets specified
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	if errors.Is(err, vulnixerr.ErrNoScanTargets) {
		printHowto()
		os.Exit(3)
	}

	if errors.Is(err, vulnixerr.ErrOnlyWhitelistedFound) {
		os.Exit(1)
	}

	var expected vulnixerr.ExpectedErr
	if errors.As(err, &expected) {
		// the report (and its whitelist annotations) already tell the whole story
		os.Exit(2)
	}

	_ = stderrPrintLnf(err.Error())
	os.Exit(2)
}

func initRootCmdConfigOptions() {
	if err := bindRootConfigOptions(rootCmd.Flags()); err != nil {
		panic(err)
	}
}

func initAppConfig() {
	cfg, err := config.LoadApplicationConfig(viper.GetViper(), persistentOpts)
	if err != nil {
		fmt.Printf("failed to load application config: \n\t%+v\n", err)
		os.Exit(2)
	}
	appConfig = cfg
}

func initLogging() {
	cfg := logger.LogrusConfig{
		EnableConsole: (appConfig.Log.FileLocation == "" || appConfig.CliOptions.Verbosity > 0) && !appConfig.Quiet,
		EnableFile:    appConfig.Log.FileLocation != "",
		Level:         appConfig.Log.LevelOpt,
		Structured:    appConfig.Log.Structured,
		FileLocation:  appConfig.Log.FileLocation,
	}

	logWrapper := logger.NewLogrusLogger(cfg)
	vulnix.SetLogger(logWrapper)
}

func logAppConfig() {
	log.Debugf("application config:\n%+v", color.Magenta.Sprint(appConfig.String()))
}

func logAppVersion() {
	versionInfo := version.FromBuild()
	log.Infof("vulnix version: %s", versionInfo.Version)

	var fields map[string]interface{}
	bytes, err := json.Marshal(versionInfo)
	if err != nil {
		return
	}
	err = json.Unmarshal(bytes, &fields)
	if err != nil {
		return
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for idx, field := range keys {
		value := fields[field]
		branch := "├──"
		if idx == len(fields)-1 {
			branch = "└──"
		}
		log.Debugf("  %s %s: %s", branch, field, value)
	}
}

func initEventBus() {
	eventBus = partybus.NewBus()
	eventSubscription = eventBus.Subscribe()

	vulnix.SetBus(eventBus)
}
