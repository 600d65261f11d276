package askcmd

import (
	"github.com/spf13/viper"

	"github.com/quailyquaily/llmask/internal/payload"
)

const (
	envPrefix = "LLMASK"

	defaultInspectDir = "dump"
)

func initViperDefaults(v *viper.Viper) {
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("trace", false)

	v.SetDefault("max_tokens", payload.DefaultMaxTokens)
	v.SetDefault("inspect_dir", defaultInspectDir)
}
