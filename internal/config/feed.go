package config

import (
	"path"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/flyingcircus/vulnix/internal"
	"github.com/flyingcircus/vulnix/vulnix/nvd"
)

type feed struct {
	CacheDir              string        `yaml:"cache-dir" json:"cache-dir" mapstructure:"cache-dir"`
	MirrorURL             string        `yaml:"mirror-url" json:"mirror-url" mapstructure:"mirror-url"`
	CACert                string        `yaml:"ca-cert" json:"ca-cert" mapstructure:"ca-cert"`
	AutoUpdate            bool          `yaml:"auto-update" json:"auto-update" mapstructure:"auto-update"`
	ValidateByHashOnStart bool          `yaml:"validate-by-hash-on-start" json:"validate-by-hash-on-start" mapstructure:"validate-by-hash-on-start"`
	UpdateInterval        time.Duration `yaml:"update-interval" json:"update-interval" mapstructure:"update-interval"`
	RequestTimeout        time.Duration `yaml:"request-timeout" json:"request-timeout" mapstructure:"request-timeout"`
	RequestRetryCount     int           `yaml:"request-retry-count" json:"request-retry-count" mapstructure:"request-retry-count"`
	MaxWorkers            int           `yaml:"max-workers" json:"max-workers" mapstructure:"max-workers"`
}

func (cfg feed) loadDefaultValues(v *viper.Viper) {
	v.SetDefault("feed.cache-dir", path.Join(xdg.CacheHome, internal.ApplicationName, "nvd"))
	v.SetDefault("feed.mirror-url", internal.FeedMirrorURL)
	v.SetDefault("feed.ca-cert", "")
	v.SetDefault("feed.auto-update", true)
	v.SetDefault("feed.validate-by-hash-on-start", false)
	v.SetDefault("feed.update-interval", nvd.DefaultUpdateInterval)
	v.SetDefault("feed.request-timeout", nvd.DefaultRequestTimeout)
	v.SetDefault("feed.request-retry-count", nvd.DefaultRequestRetryCount)
	v.SetDefault("feed.max-workers", nvd.DefaultMaxWorkers)
}

func (cfg feed) ToCuratorConfig() nvd.Config {
	return nvd.Config{
		CacheDir:              cfg.CacheDir,
		MirrorURL:             cfg.MirrorURL,
		CACert:                cfg.CACert,
		ValidateByHashOnStart: cfg.ValidateByHashOnStart,
		UpdateInterval:        cfg.UpdateInterval,
		RequestTimeout:        cfg.RequestTimeout,
		RequestRetryCount:     cfg.RequestRetryCount,
		MaxWorkers:            cfg.MaxWorkers,
	}
}
