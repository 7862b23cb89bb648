package config

import (
	"github.com/spf13/viper"
)

// whitelistCfg carries whitelist sources configured outside the CLI flags. Sources are
// file paths or URLs, loaded and merged in order.
type whitelistCfg struct {
	Sources []string `yaml:"sources" json:"sources" mapstructure:"sources"`
}

func (cfg whitelistCfg) loadDefaultValues(v *viper.Viper) {
	v.SetDefault("whitelist.sources", []string{})
}
