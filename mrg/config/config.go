package config

import (
	"fmt"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/medreport/mrg"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Dataset   DatasetConfig   `mapstructure:"dataset"`
	Fusion    FusionConfig    `mapstructure:"fusion"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Decoder   DecoderConfig   `mapstructure:"decoder"`
	Store     StoreConfig     `mapstructure:"store"`
	Image     ImageConfig     `mapstructure:"image"`
}

// DatasetConfig selects the corpus and the profile it is normalized with.
type DatasetConfig struct {
	Name      string `mapstructure:"name"`
	AnnPath   string `mapstructure:"annPath"`
	ImageDir  string `mapstructure:"imageDir"`
	Threshold int    `mapstructure:"threshold"`
}

// FusionConfig stores multi-image fusion settings.
type FusionConfig struct {
	SplitAt    int    `mapstructure:"splitAt"`
	EmptyBlock string `mapstructure:"emptyBlock"`
	Workers    int    `mapstructure:"workers"`
}

// ExtractorConfig selects the visual extractor.
type ExtractorConfig struct {
	Provider          string `mapstructure:"provider"`
	ModelPath         string `mapstructure:"modelPath"`
	Regions           int    `mapstructure:"regions"`
	Dims              int    `mapstructure:"dims"`
	ExecutionProvider string `mapstructure:"executionProvider"`
	DeviceID          int    `mapstructure:"deviceID"`
}

// DecoderConfig stores the linear decoder settings.
type DecoderConfig struct {
	MaxLength int   `mapstructure:"maxLength"`
	Hidden    int   `mapstructure:"hidden"`
	Seed      int64 `mapstructure:"seed"`
}

// StoreConfig stores database connection details.
type StoreConfig struct {
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"authToken"`
}

// ImageConfig stores input image preprocessing settings.
type ImageConfig struct {
	Size int `mapstructure:"size"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetDefault("dataset.name", internal.DefaultDatasetName)
	v.SetDefault("dataset.annPath", internal.DefaultAnnPath)
	v.SetDefault("dataset.imageDir", filepath.Join("data", "images"))
	v.SetDefault("dataset.threshold", internal.DefaultThreshold)

	v.SetDefault("fusion.splitAt", 30)
	v.SetDefault("fusion.emptyBlock", "error")
	v.SetDefault("fusion.workers", 4)

	v.SetDefault("extractor.provider", "hash")
	v.SetDefault("extractor.modelPath", "")
	v.SetDefault("extractor.regions", 49)
	v.SetDefault("extractor.dims", 512)
	v.SetDefault("extractor.executionProvider", "cpu")
	v.SetDefault("extractor.deviceID", 0)

	v.SetDefault("decoder.maxLength", 60)
	v.SetDefault("decoder.hidden", 64)
	v.SetDefault("decoder.seed", 42)

	v.SetDefault("store.url", internal.DefaultStoreURL)
	v.SetDefault("store.authToken", "")

	v.SetDefault("image.size", 224)

	v.SetEnvPrefix(strings.ToUpper(internal.DefaultAppName))
	v.AutomaticEnv()                                   // e.g. fusion.splitAt is read from MRG_FUSION_SPLITAT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	return &cfg, nil
}
