// Package config provides a reusable loader for lumen-node configuration
// files and environment variables. It is versioned so that applications can
// depend on a stable API contract.
//
// Version: v0.1.0
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/lumennet/lumen-core/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Mode selects the node's runtime posture.
type Mode string

const (
	ModeDev  Mode = "dev"
	ModeTest Mode = "test"
	ModeProd Mode = "prod"
)

// StorageKind selects the state store backend.
type StorageKind string

const (
	StorageInMemory StorageKind = "in_memory"
	StorageRocksDb  StorageKind = "rocksdb"
)

// GenesisKind selects how the genesis document is supplied.
type GenesisKind string

const (
	GenesisInline GenesisKind = "inline"
	GenesisPath   GenesisKind = "path"
)

// Config is the node's full configuration surface, enumerated in spec §6:
// mode, storage, db_path, db_options, genesis. No environment variables are
// core — everything a component needs arrives through this struct.
type Config struct {
	Mode       Mode              `mapstructure:"mode" json:"mode"`
	Storage    StorageKind       `mapstructure:"storage" json:"storage"`
	DBPath     string            `mapstructure:"db_path" json:"db_path"`
	DBOptions  map[string]string `mapstructure:"db_options" json:"db_options"`
	Genesis    GenesisKind       `mapstructure:"genesis" json:"genesis"`
	GenesisRef string            `mapstructure:"genesis_ref" json:"genesis_ref"` // inline JSON or a file path, per Genesis

	Node struct {
		ListenAddr   string   `mapstructure:"listen_addr" json:"listen_addr"`
		DebugAddr    string   `mapstructure:"debug_addr" json:"debug_addr"`
		BootstrapIDs []string `mapstructure:"bootstrap_ids" json:"bootstrap_ids"`
	} `mapstructure:"node" json:"node"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment-specific
// overrides. The resulting configuration is stored in AppConfig and
// returned. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	if AppConfig.Mode == "" {
		AppConfig.Mode = ModeDev
	}
	if AppConfig.Storage == "" {
		AppConfig.Storage = StorageInMemory
	}
	if AppConfig.Genesis == "" {
		AppConfig.Genesis = GenesisInline
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the LUMEN_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("LUMEN_ENV", ""))
}
