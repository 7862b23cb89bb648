package config

import (
	"errors"
	"fmt"
	"path"
	"reflect"
	"strings"

	"github.com/adrg/xdg"
	"github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/flyingcircus/vulnix/internal"
)

var ErrApplicationConfigNotFound = fmt.Errorf("application config not found")

type CliOnlyOptions struct {
	ConfigPath string
	Verbosity  int
}

type defaultValueLoader interface {
	loadDefaultValues(*viper.Viper)
}

type parser interface {
	parseConfigValues() error
}

type Application struct {
	ConfigPath         string         `yaml:",omitempty" json:"configPath"`                                                    // the location where the application config was read from (either from -c or discovered while loading)
	Output             string         `yaml:"output" json:"output" mapstructure:"output"`                                      // -o, the Presenter hint string to use for report formatting
	OutputTemplateFile string         `yaml:"output-template-file" json:"output-template-file" mapstructure:"output-template-file"` // -t, the template file to use for formatting the final report
	File               string         `yaml:"file" json:"file" mapstructure:"file"`                                            // --file, the file to write report output to
	Quiet              bool           `yaml:"quiet" json:"quiet" mapstructure:"quiet"`                                         // -q, indicates to not show any status output to stderr (ETUI or logging UI)
	JSONShorthand      bool           `yaml:"json" json:"json" mapstructure:"json"`                                            // --json, compatibility shorthand for -o json
	CheckForAppUpdate  bool           `yaml:"check-for-app-update" json:"check-for-app-update" mapstructure:"check-for-app-update"` // whether to check for an application update on start up or not
	System             bool           `yaml:"system" json:"system" mapstructure:"system"`                                      // -S, scan the current system closure
	GCRoots            bool           `yaml:"gc-roots" json:"gc-roots" mapstructure:"gc-roots"`                                // -G, scan all active garbage collector roots
	Requisites         bool           `yaml:"requisites" json:"requisites" mapstructure:"requisites"`                          // -r, expand scan targets to their transitive closure
	NoRequisites       bool           `yaml:"-" json:"-" mapstructure:"no-requisites"`                                        // -R, overrides requisites (kept separate so the flag can win over config)
	ShowWhitelisted    bool           `yaml:"show-whitelisted" json:"show-whitelisted" mapstructure:"show-whitelisted"`        // -s, include whitelisted findings in the report
	WriteWhitelist     string         `yaml:"write-whitelist" json:"write-whitelist" mapstructure:"write-whitelist"`           // -W, freeze current findings into the given whitelist file
	CliOptions         CliOnlyOptions `yaml:"-" json:"-"`
	Verbosity          int            `yaml:"verbosity,omitempty" json:"verbosity"`
	Feed               feed           `yaml:"feed" json:"feed" mapstructure:"feed"`
	Whitelist          whitelistCfg   `yaml:"whitelist" json:"whitelist" mapstructure:"whitelist"`
	Dev                development    `yaml:"dev" json:"dev" mapstructure:"dev"`
	Log                logging        `yaml:"log" json:"log" mapstructure:"log"`
}

func newApplicationConfig(v *viper.Viper, cliOpts CliOnlyOptions) *Application {
	config := &Application{
		CliOptions: cliOpts,
	}
	config.loadDefaultValues(v)

	return config
}

func LoadApplicationConfig(v *viper.Viper, cliOpts CliOnlyOptions) (*Application, error) {
	// the user may not have a config, and this is OK, we can use the default config + default cobra cli values instead
	config := newApplicationConfig(v, cliOpts)

	if err := readConfig(v, cliOpts.ConfigPath); err != nil && !errors.Is(err, ErrApplicationConfigNotFound) {
		return nil, err
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to parse config: %w", err)
	}
	config.ConfigPath = v.ConfigFileUsed()

	if err := config.parseConfigValues(); err != nil {
		return nil, fmt.Errorf("invalid application config: %w", err)
	}

	return config, nil
}

// loadDefaultValues loads the default configuration values into the viper instance (before the config values are read and parsed).
func (cfg Application) loadDefaultValues(v *viper.Viper) {
	// set the default values for primitive fields in this struct
	v.SetDefault("check-for-app-update", true)
	v.SetDefault("requisites", true)
	v.SetDefault("no-requisites", false)
	v.SetDefault("show-whitelisted", false)
	v.SetDefault("write-whitelist", "")
	v.SetDefault("json", false)

	// for each field in the configuration struct, see if the field implements the defaultValueLoader interface and invoke it if it does
	value := reflect.ValueOf(cfg)
	for i := 0; i < value.NumField(); i++ {
		// note: the defaultValueLoader method receiver is NOT a pointer receiver.
		if loadable, ok := value.Field(i).Interface().(defaultValueLoader); ok {
			// the field implements defaultValueLoader, call it
			loadable.loadDefaultValues(v)
		}
	}
}

func (cfg *Application) parseConfigValues() error {
	// parse application config options
	for _, optionFn := range []func() error{
		cfg.parseLogLevelOption,
		cfg.parseOutputOption,
		cfg.parseRequisitesOption,
	} {
		if err := optionFn(); err != nil {
			return err
		}
	}

	// parse nested config options
	// for each field in the configuration struct, see if the field implements the parser interface
	// note: the app config is a pointer, so we need to grab the elements explicitly (to traverse the address)
	value := reflect.ValueOf(cfg).Elem()
	for i := 0; i < value.NumField(); i++ {
		// note: since the interface method of parser is a pointer receiver we need to get the value of the field as a pointer.
		if parsable, ok := value.Field(i).Addr().Interface().(parser); ok {
			// the field implements parser, call it
			if err := parsable.parseConfigValues(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (cfg *Application) parseLogLevelOption() error {
	switch {
	case cfg.Quiet:
		// TODO: this is bad: quiet option trumps all other logging options (such as to a file on disk)
		// we should be able to quiet the console logging and leave file logging alone...
		// ... this will be an enhancement for later
		cfg.Log.LevelOpt = logrus.PanicLevel
	case cfg.CliOptions.Verbosity > 0:
		switch v := cfg.CliOptions.Verbosity; {
		case v == 1:
			cfg.Log.LevelOpt = logrus.InfoLevel
		case v >= 2:
			cfg.Log.LevelOpt = logrus.DebugLevel
		}
		cfg.Verbosity = cfg.CliOptions.Verbosity
	case cfg.Log.Level != "":
		lvl, err := logrus.ParseLevel(strings.ToLower(cfg.Log.Level))
		if err != nil {
			return fmt.Errorf("bad log level configured (%q): %w", cfg.Log.Level, err)
		}

		cfg.Log.LevelOpt = lvl
		if cfg.Log.LevelOpt >= logrus.InfoLevel {
			cfg.Verbosity = 1
		}
	default:
		cfg.Log.LevelOpt = logrus.ErrorLevel
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = cfg.Log.LevelOpt.String()
	}

	return nil
}

func (cfg *Application) parseOutputOption() error {
	if cfg.JSONShorthand {
		if cfg.Output != "" && cfg.Output != "json" {
			return fmt.Errorf("cannot use --json together with -o %s", cfg.Output)
		}
		cfg.Output = "json"
	}
	if cfg.Output == "" {
		cfg.Output = "table"
	}
	return nil
}

func (cfg *Application) parseRequisitesOption() error {
	if cfg.NoRequisites {
		cfg.Requisites = false
	}
	return nil
}

func (cfg Application) String() string {
	// yaml is pretty human friendly (at least when compared to json)
	appCfgStr, err := yaml.Marshal(&cfg)

	if err != nil {
		return err.Error()
	}

	return string(appCfgStr)
}

// readConfig attempts to read the given config path from disk or discover an alternate store location
func readConfig(v *viper.Viper, configPath string) error {
	var err error
	v.AutomaticEnv()
	v.SetEnvPrefix(internal.ApplicationName)
	// allow for nested options to be specified via environment variables
	// e.g. feed.cache-dir = VULNIX_FEED_CACHE_DIR
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	// use explicitly the given user config
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read application config=%q : %w", configPath, err)
		}
		// don't fall through to other options if the config path was explicitly provided
		return nil
	}

	// start searching for valid configs in order...

	// 1. look for .<appname>.yaml (in the current directory)
	v.AddConfigPath(".")
	v.SetConfigName("." + internal.ApplicationName)
	if err = v.ReadInConfig(); err == nil {
		return nil
	} else if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
		return fmt.Errorf("unable to parse config=%q: %w", v.ConfigFileUsed(), err)
	}

	// 2. look for .<appname>/config.yaml (in the current directory)
	v.AddConfigPath("." + internal.ApplicationName)
	v.SetConfigName("config")
	if err = v.ReadInConfig(); err == nil {
		return nil
	} else if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
		return fmt.Errorf("unable to parse config=%q: %w", v.ConfigFileUsed(), err)
	}

	// 3. look for ~/.<appname>.yaml
	home, err := homedir.Dir()
	if err == nil {
		v.AddConfigPath(home)
		v.SetConfigName("." + internal.ApplicationName)
		if err = v.ReadInConfig(); err == nil {
			return nil
		} else if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return fmt.Errorf("unable to parse config=%q: %w", v.ConfigFileUsed(), err)
		}
	}

	// 4. look for <appname>/config.yaml in xdg locations (starting with xdg home config dir, then moving upwards)
	v.AddConfigPath(path.Join(xdg.ConfigHome, internal.ApplicationName))
	for _, dir := range xdg.ConfigDirs {
		v.AddConfigPath(path.Join(dir, internal.ApplicationName))
	}
	v.SetConfigName("config")
	if err = v.ReadInConfig(); err == nil {
		return nil
	} else if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
		return fmt.Errorf("unable to parse config=%q: %w", v.ConfigFileUsed(), err)
	}

	return ErrApplicationConfigNotFound
}
