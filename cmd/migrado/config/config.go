// Package config builds the per-invocation options of the migrado CLI from
// flags, MIGRADO_* environment variables and an optional YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/loykin/migrado"
	"github.com/loykin/migrado/internal/arango"
	"github.com/loykin/migrado/internal/common"
	"github.com/loykin/migrado/internal/constants"
	"github.com/loykin/migrado/internal/migration"
	"github.com/loykin/migrado/internal/schema"
	"github.com/loykin/migrado/internal/store"
	"github.com/loykin/migrado/internal/util"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "MIGRADO"

// envAliases lists the environment variables read for a key, the full
// name first. The short names are the ones earlier migrado releases used.
var envAliases = map[string][]string{
	"state_coll": {EnvPrefix + "_STATE_COLL", EnvPrefix + "_COLL"},
	"username":   {EnvPrefix + "_USERNAME", EnvPrefix + "_USER"},
	"password":   {EnvPrefix + "_PASSWORD", EnvPrefix + "_PASS"},
}

// Options holds every setting of one invocation.
type Options struct {
	Path          string `mapstructure:"path" yaml:"path"`
	DB            string `mapstructure:"db" yaml:"db"`
	StateColl     string `mapstructure:"state_coll" yaml:"state_coll"`
	TLS           bool   `mapstructure:"tls" yaml:"tls"`
	TLSInsecure   bool   `mapstructure:"tls_insecure" yaml:"tls_insecure"`
	Host          string `mapstructure:"host" yaml:"host"`
	Port          int    `mapstructure:"port" yaml:"port"`
	Username      string `mapstructure:"username" yaml:"username"`
	Password      string `mapstructure:"password" yaml:"password"`
	JWTSecretFile string `mapstructure:"jwt_secret_file" yaml:"jwt_secret_file"`
	NoInteraction bool   `mapstructure:"no_interaction" yaml:"no_interaction"`

	Store     string `mapstructure:"store" yaml:"store"`
	StorePath string `mapstructure:"store_path" yaml:"store_path"`
	StoreDSN  string `mapstructure:"store_dsn" yaml:"store_dsn"`

	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat     string `mapstructure:"log_format" yaml:"log_format"`
	MaskSensitive bool   `mapstructure:"mask_sensitive" yaml:"mask_sensitive"`

	// run
	Timeout                 int    `mapstructure:"timeout" yaml:"timeout"`
	Arangosh                string `mapstructure:"arangosh" yaml:"arangosh"`
	MaxTransactionSize      int64  `mapstructure:"max_transaction_size" yaml:"max_transaction_size"`
	IntermediateCommitSize  int64  `mapstructure:"intermediate_commit_size" yaml:"intermediate_commit_size"`
	IntermediateCommitCount int64  `mapstructure:"intermediate_commit_count" yaml:"intermediate_commit_count"`
	Async                   bool   `mapstructure:"async" yaml:"async"`
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		_ = v.BindEnv(append([]string{key}, names...)...)
	}

	v.SetDefault("path", constants.DefaultMigrationsPath)
	v.SetDefault("state_coll", constants.DefaultStateCollection)
	v.SetDefault("host", constants.DefaultHost)
	v.SetDefault("port", constants.DefaultPort)
	v.SetDefault("store", store.DriverArango)
	v.SetDefault("log_level", common.LogLevelInfo.String())
	v.SetDefault("log_format", string(common.FormatText))
	v.SetDefault("mask_sensitive", true)
	v.SetDefault("timeout", constants.DefaultTimeoutSeconds)
	v.SetDefault("arangosh", constants.DefaultArangosh)
	return v
}

// Key maps a flag name to its viper key.
func Key(flag string) string { return strings.ReplaceAll(flag, "-", "_") }

// BindFlags binds every flag of fs to v under its key.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err == nil {
			err = v.BindPFlag(Key(f.Name), f)
		}
	})
	return err
}

// Load reads the config file named by the "config" key, if any, and
// decodes the options.
func Load(v *viper.Viper) (Options, error) {
	if path, ok := util.TrimEmptyCheck(v.GetString("config")); ok {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Options{}, &migration.UsageError{Msg: "read config " + path, Err: err}
		}
	}
	var o Options
	if err := v.Unmarshal(&o); err != nil {
		return Options{}, &migration.UsageError{Msg: "decode options", Err: err}
	}
	o.Store = util.TrimAndLower(o.Store)
	return o, nil
}

// Validate checks the settings needed to reach the database.
func (o Options) Validate() error {
	if strings.TrimSpace(o.DB) == "" {
		return migration.Usagef("database name is required, set --db or %s_DB", EnvPrefix)
	}
	if o.Port <= 0 || o.Port > 65535 {
		return migration.Usagef("invalid port %d", o.Port)
	}
	if o.Timeout < 0 {
		return migration.Usagef("invalid timeout %d", o.Timeout)
	}
	switch o.Store {
	case "", store.DriverArango, store.DriverSqlite, store.DriverPostgres:
	default:
		return migration.Usagef("unsupported store %q, use arango, sqlite or postgres", o.Store)
	}
	if o.Store == store.DriverPostgres && o.StoreDSN == "" {
		return migration.Usagef("the postgres store requires --store-dsn")
	}
	return nil
}

// NeedsPassword reports whether the password should be prompted for.
func (o Options) NeedsPassword() bool {
	return o.Username != "" && o.Password == "" && o.JWTSecretFile == "" && !o.NoInteraction
}

// Auth returns the authentication settings. A JWT secret file wins over a
// username.
func (o Options) Auth() migrado.AuthConfig {
	switch {
	case o.JWTSecretFile != "":
		return migrado.AuthConfig{Type: migrado.AuthTypeJWT, Config: map[string]interface{}{"secret_file": o.JWTSecretFile}}
	case o.Username != "":
		return migrado.AuthConfig{Type: migrado.AuthTypeBasic, Config: map[string]interface{}{
			"username": o.Username, "password": o.Password,
		}}
	default:
		return migrado.AuthConfig{Type: migrado.AuthTypeNone}
	}
}

// StoreConfig returns the state backend settings.
func (o Options) StoreConfig() store.Config {
	cfg := store.Config{Driver: o.Store, Collection: o.StateColl}
	switch o.Store {
	case store.DriverSqlite:
		path := o.StorePath
		if path == "" {
			path = filepath.Join(o.Path, constants.DefaultSQLiteFile)
		}
		cfg.DriverConfig = &store.SqliteConfig{Path: path}
	case store.DriverPostgres:
		cfg.DriverConfig = &store.PostgresConfig{DSN: o.StoreDSN}
	}
	return cfg
}

// Engine returns the engine configuration.
func (o Options) Engine(logger *common.Logger) migrado.Config {
	return migrado.Config{
		Database: arango.Config{
			TLS:      o.TLS,
			Insecure: o.TLSInsecure,
			Host:     o.Host,
			Port:     o.Port,
			Database: o.DB,
			Timeout:  time.Duration(o.Timeout) * time.Second,
		},
		Auth:            o.Auth(),
		Store:           o.StoreConfig(),
		StateCollection: o.StateColl,
		MigrationsPath:  o.Path,
		Arangosh:        o.Arangosh,
		Tx: migrado.TxOptions{
			MaxTransactionSize:      o.MaxTransactionSize,
			IntermediateCommitSize:  o.IntermediateCommitSize,
			IntermediateCommitCount: o.IntermediateCommitCount,
			Async:                   o.Async,
		},
		Logger: logger,
	}
}

// Logger builds the logger selected by the logging options.
func (o Options) Logger() (*common.Logger, error) {
	var level common.LogLevel
	switch util.TrimAndLower(o.LogLevel) {
	case "error":
		level = common.LogLevelError
	case "warn", "warning":
		level = common.LogLevelWarn
	case "", "info":
		level = common.LogLevelInfo
	case "debug":
		level = common.LogLevelDebug
	default:
		return nil, migration.Usagef("invalid log level %q", o.LogLevel)
	}
	format := common.Format(util.TrimAndLower(o.LogFormat))
	switch format {
	case "", common.FormatText, common.FormatJSON, common.FormatColor:
	default:
		return nil, migration.Usagef("invalid log format %q", o.LogFormat)
	}
	logger := common.NewLoggerWithWriter(os.Stderr, level, format)
	logger.EnableMasking(o.MaskSensitive)
	return logger, nil
}

// ParseLevel parses a validation level flag into a usage error on failure.
func ParseLevel(s string) (schema.Level, error) {
	level, err := schema.ParseLevel(s)
	if err != nil {
		return "", &migration.UsageError{Msg: "validation level", Err: err}
	}
	return level, nil
}

// String renders the options for debug logging with credentials hidden.
func (o Options) String() string {
	pw := ""
	if o.Password != "" {
		pw = "***"
	}
	return fmt.Sprintf("db=%s host=%s port=%d tls=%t user=%s password=%s store=%s path=%s",
		o.DB, o.Host, o.Port, o.TLS, o.Username, pw, o.Store, o.Path)
}
