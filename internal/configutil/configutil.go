package configutil

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Init layers the optional dotenv file, the environment and the optional
// config file into v. Values already present in the process environment win
// over the dotenv file.
func Init(v *viper.Viper, envPrefix string) error {
	if envFile := strings.TrimSpace(v.GetString("env_file")); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	cfgFile := strings.TrimSpace(v.GetString("config"))
	if cfgFile == "" {
		return nil
	}
	if _, err := os.Stat(cfgFile); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func FlagOrViperString(v *viper.Viper, cmd *cobra.Command, flagName, viperKey string) string {
	val, _ := cmd.Flags().GetString(flagName)
	if cmd.Flags().Changed(flagName) {
		return val
	}
	if viperKey != "" && v.IsSet(viperKey) {
		return v.GetString(viperKey)
	}
	return val
}

func FlagOrViperInt(v *viper.Viper, cmd *cobra.Command, flagName, viperKey string) int {
	val, _ := cmd.Flags().GetInt(flagName)
	if cmd.Flags().Changed(flagName) {
		return val
	}
	if viperKey != "" && v.IsSet(viperKey) {
		return v.GetInt(viperKey)
	}
	return val
}

func FlagOrViperBool(v *viper.Viper, cmd *cobra.Command, flagName, viperKey string) bool {
	val, _ := cmd.Flags().GetBool(flagName)
	if cmd.Flags().Changed(flagName) {
		return val
	}
	if viperKey != "" && v.IsSet(viperKey) {
		return v.GetBool(viperKey)
	}
	return val
}

func FlagOrViperDuration(v *viper.Viper, cmd *cobra.Command, flagName, viperKey string) time.Duration {
	val, _ := cmd.Flags().GetDuration(flagName)
	if cmd.Flags().Changed(flagName) {
		return val
	}
	if viperKey != "" && v.IsSet(viperKey) {
		return v.GetDuration(viperKey)
	}
	return val
}
