package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/thurmanmarka/nstaralign"
)

// FileName is the config file name looked up in the config directory,
// without extension.
const FileName = "nstar"

// Load sets default values and reads nstar.yaml from configDir. A missing
// file leaves the defaults in place.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "")
	viper.SetDefault("db", "nstar.db")

	viper.SetDefault("site.lat", 0.0)
	viper.SetDefault("site.lon", 0.0)
	viper.SetDefault("site.elevation", 0.0)

	viper.SetDefault("mount.stepsRA", 2457601)
	viper.SetDefault("mount.stepsDec", 2457601)
	viper.SetDefault("mount.homeRA", 0)
	viper.SetDefault("mount.homeDec", 0)
	viper.SetDefault("mount.polar", true)

	viper.SetDefault("strategy.activePoints", "all")
	viper.SetDefault("strategy.selection", "centre")
	viper.SetDefault("strategy.transform", "affine")
	viper.SetDefault("strategy.fallback", "triangle")
	viper.SetDefault("strategy.checkLocalPier", false)
	viper.SetDefault("strategy.maxCombinations", 50)
	viper.SetDefault("strategy.proximityLimit", nstaralign.DefaultProximityLimit)
	viper.SetDefault("strategy.leastSquaresPoints", nstaralign.DefaultLeastSquaresPoints)

	if configDir == "" {
		configDir = "."
	}
	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("yaml")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// ModelConfig builds an alignment config from the loaded settings.
func ModelConfig() (nstaralign.Config, error) {
	cfg := nstaralign.DefaultConfig()
	cfg.Site = nstaralign.Coordinates{
		Lat:       viper.GetFloat64("site.lat"),
		Lon:       viper.GetFloat64("site.lon"),
		Elevation: viper.GetFloat64("site.elevation"),
	}
	cfg.StepsPerRev = nstaralign.EncoderPosition{
		RA:  viper.GetInt64("mount.stepsRA"),
		Dec: viper.GetInt64("mount.stepsDec"),
	}
	cfg.Home = nstaralign.EncoderPosition{
		RA:  viper.GetInt64("mount.homeRA"),
		Dec: viper.GetInt64("mount.homeDec"),
	}
	cfg.PolarEnable = viper.GetBool("mount.polar")

	var err error
	if cfg.ActivePoints, err = nstaralign.ParseActivePoints(viper.GetString("strategy.activePoints")); err != nil {
		return cfg, fmt.Errorf("strategy.activePoints: %w", err)
	}
	if cfg.Selection, err = nstaralign.ParseSelectionPolicy(viper.GetString("strategy.selection")); err != nil {
		return cfg, fmt.Errorf("strategy.selection: %w", err)
	}
	if cfg.Transform, err = nstaralign.ParseTransformKind(viper.GetString("strategy.transform")); err != nil {
		return cfg, fmt.Errorf("strategy.transform: %w", err)
	}
	if cfg.Fallback, err = nstaralign.ParseFallbackPolicy(viper.GetString("strategy.fallback")); err != nil {
		return cfg, fmt.Errorf("strategy.fallback: %w", err)
	}
	cfg.CheckLocalPier = viper.GetBool("strategy.checkLocalPier")
	cfg.MaxCombinationCount = viper.GetInt("strategy.maxCombinations")
	cfg.ProximityLimit = viper.GetFloat64("strategy.proximityLimit")
	cfg.LeastSquaresPoints = viper.GetInt("strategy.leastSquaresPoints")

	return cfg, nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// Set overrides a config value, as a command line flag does.
func Set(key string, value any) {
	viper.Set(key, value)
}
