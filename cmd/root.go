package cmd

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/gookit/color"
	"github.com/pkg/profile"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/wagoodman/go-partybus"

	"github.com/flyingcircus/vulnix/internal"
	"github.com/flyingcircus/vulnix/internal/bus"
	"github.com/flyingcircus/vulnix/internal/file"
	"github.com/flyingcircus/vulnix/internal/format"
	"github.com/flyingcircus/vulnix/internal/log"
	"github.com/flyingcircus/vulnix/internal/ui"
	"github.com/flyingcircus/vulnix/internal/version"
	"github.com/flyingcircus/vulnix/vulnix"
	"github.com/flyingcircus/vulnix/vulnix/event"
	"github.com/flyingcircus/vulnix/vulnix/match"
	"github.com/flyingcircus/vulnix/vulnix/nix"
	"github.com/flyingcircus/vulnix/vulnix/presenter"
	"github.com/flyingcircus/vulnix/vulnix/presenter/models"
	"github.com/flyingcircus/vulnix/vulnix/vulnixerr"
	"github.com/flyingcircus/vulnix/vulnix/whitelist"
)

// currentSystemPath is the gc root pointing at the closure of the running system.
const currentSystemPath = "/nix/var/nix/gcroots/current-system"

var rootCmd = &cobra.Command{
	Use:   fmt.Sprintf("%s [flags] [PATH ...]", internal.ApplicationName),
	Short: "A vulnerability scanner for the Nix store",
	Long: format.Tprintf(`Scan Nix store paths for derivations with known vulnerabilities.

Scan targets may be combined:
    {{.appName}} -S                      scan the current system closure
    {{.appName}} -G                      scan all garbage collector roots
    {{.appName}} /nix/store/...-pkg      scan the given store paths or .drv files
`, map[string]interface{}{
		"appName": internal.ApplicationName,
	}),
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if appConfig.Dev.ProfileCPU {
			defer profile.Start(profile.CPUProfile).Stop()
		} else if appConfig.Dev.ProfileMem {
			defer profile.Start(profile.MemProfile).Stop()
		}

		return runDefaultCmd(cmd, args)
	},
}

// howtoText is shown when the user gave nothing to scan (exit code 3).
const howtoText = `Scan Nix store paths for derivations with known vulnerabilities.

Pick at least one scan target:
    vulnix -S             scan the current system closure
    vulnix -G             scan all garbage collector roots
    vulnix PATH ...       scan the given store paths or .drv files

See 'vulnix --help' for the full option list.
`

func printHowto() {
	parts := strings.SplitN(howtoText, "\n", 2)
	color.Yellow.Println(parts[0])
	fmt.Print(parts[1])
}

func runDefaultCmd(_ *cobra.Command, args []string) error {
	if !appConfig.System && !appConfig.GCRoots && len(args) == 0 {
		return vulnixerr.ErrNoScanTargets
	}

	presenterOption := presenter.ParseOption(appConfig.Output)
	if presenterOption == presenter.UnknownPresenter {
		return fmt.Errorf("bad --output value '%s'", appConfig.Output)
	}

	if presenterOption == presenter.TemplatePresenter && appConfig.OutputTemplateFile == "" {
		return fmt.Errorf("'template' output requires a template file (-t)")
	}
	if presenterOption != presenter.TemplatePresenter && appConfig.OutputTemplateFile != "" {
		return fmt.Errorf("'%s' output does not support the -t option", presenterOption)
	}

	// we may not be able to have the presenter print the report to stdout and the ui report
	// other aspects on stdout (or stderr) without causing independent aspects to mux output
	// streams in bad ways, so the report writer is set up front and handed to the UI
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
		startWorker(presenterOption, args),
		setupSignals(),
		eventSubscription,
		func() {},
		ui.Select(isVerbose(), appConfig.Quiet, reporter)...,
	)
}

func isVerbose() (result bool) {
	isPipedInput, err := internal.IsPipedInput()
	if err != nil {
		// since we can't tell if there was piped input we assume that there could be to disable the ETUI
		log.Warnf("unable to determine if there is piped input: %+v", err)
		return true
	}
	// verbosity should consider if there is piped input (in which case we should not show the ETUI)
	return appConfig.CliOptions.Verbosity > 0 || isPipedInput
}

func startWorker(presenterOption presenter.Option, paths []string) <-chan error {
	errs := make(chan error)
	go func() {
		defer close(errs)

		checkForAppUpdateIfEnabled()

		wl, err := loadWhitelists(appConfig.Whitelist.Sources)
		if err != nil {
			errs <- err
			return
		}

		provider, _, _, err := vulnix.LoadFeed(appConfig.Feed.ToCuratorConfig(), appConfig.Feed.AutoUpdate)
		if err != nil {
			errs <- fmt.Errorf("failed to load advisory feed: %w", err)
			return
		}

		if appConfig.System {
			paths = append(paths, currentSystemPath)
		}

		store := nix.NewStore(appConfig.Requisites)
		matches, _, err := vulnix.FindVulnerabilities(provider, store, appConfig.GCRoots, paths)
		if err != nil {
			errs <- err
			return
		}

		affected, masked := wl.Filter(matches)

		if appConfig.WriteWhitelist != "" {
			if err := freezeWhitelist(wl, affected, appConfig.WriteWhitelist); err != nil {
				errs <- err
				return
			}
		}

		bus.Publish(partybus.Event{
			Type: event.VulnerabilityScanningFinished,
			Value: presenter.GetPresenter(presenterOption, appConfig.OutputTemplateFile, models.Report{
				Affected:        affected,
				Masked:          masked,
				ShowWhitelisted: appConfig.ShowWhitelisted,
			}),
		})

		switch {
		case affected.Count() > 0:
			errs <- vulnixerr.ErrVulnerabilitiesFound
		case len(masked) > 0:
			errs <- vulnixerr.ErrOnlyWhitelistedFound
		}
	}()
	return errs
}

// loadWhitelists merges the configured whitelist sources in order, so later sources may
// extend or override rules given by earlier ones.
func loadWhitelists(sources []string) (*whitelist.Whitelist, error) {
	merged := whitelist.New()
	for _, source := range sources {
		wl, err := loadWhitelist(source)
		if err != nil {
			return nil, fmt.Errorf("unable to load whitelist %q: %w", source, err)
		}
		if err := merged.Merge(wl); err != nil {
			return nil, fmt.Errorf("unable to merge whitelist %q: %w", source, err)
		}
	}
	return merged, nil
}

// loadWhitelist reads a single whitelist source, fetching URL sources into a scratch
// directory first.
func loadWhitelist(source string) (*whitelist.Whitelist, error) {
	if !strings.Contains(source, "://") {
		return whitelist.Load(afero.NewOsFs(), source)
	}

	tempDir, err := os.MkdirTemp("", "vulnix-whitelist")
	if err != nil {
		return nil, fmt.Errorf("unable to create scratch dir for whitelist fetch: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			log.Warnf("unable to clean up scratch dir %q: %+v", tempDir, err)
		}
	}()

	dst := path.Join(tempDir, path.Base(source))
	if err := file.NewGetter(nil).GetFile(dst, source); err != nil {
		return nil, err
	}
	return whitelist.Load(afero.NewOsFs(), dst)
}

// freezeWhitelist records every currently affected derivation in the merged whitelist and
// writes the result to the given file, so the next run against the same closure is clean.
func freezeWhitelist(wl *whitelist.Whitelist, affected match.Matches, target string) error {
	for _, location := range affected.Locations() {
		matches := affected.GetByLocation(location)
		if len(matches) == 0 {
			continue
		}
		if err := wl.AddFrom(matches[0].Derivation); err != nil {
			return fmt.Errorf("unable to whitelist %q: %w", location, err)
		}
	}

	rendered, err := wl.Render()
	if err != nil {
		return fmt.Errorf("unable to render whitelist: %w", err)
	}

	if err := file.ReplaceFileWithBytes(afero.NewOsFs(), target, []byte(rendered)); err != nil {
		return fmt.Errorf("unable to write whitelist to %q: %w", target, err)
	}

	log.Infof("wrote whitelist with %d rules to %s", wl.Count(), target)
	return nil
}

func checkForAppUpdateIfEnabled() {
	if !appConfig.CheckForAppUpdate {
		return
	}

	isAvailable, newVersion, err := version.IsUpdateAvailable()
	if err != nil {
		log.Errorf(err.Error())
	}
	if isAvailable {
		log.Infof("new version of %s is available: %s (currently running: %s)", internal.ApplicationName, newVersion, version.FromBuild().Version)

		bus.Publish(partybus.Event{
			Type:  event.AppUpdateAvailable,
			Value: newVersion,
		})
	} else {
		log.Debugf("no new %s update available", internal.ApplicationName)
	}
}
