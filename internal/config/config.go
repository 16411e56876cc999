package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Joseda-hg/dashtrack/internal/model"
)

const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendNeo4j  = "neo4j"
	BackendMemory = "memory"
)

type Neo4j struct {
	URI      string `json:"uri" mapstructure:"uri"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

type Config struct {
	DBPath          string `json:"db_path" mapstructure:"db_path"`
	Backend         string `json:"backend" mapstructure:"backend"`
	DataDir         string `json:"data_dir" mapstructure:"data_dir"`
	Variant         string `json:"variant" mapstructure:"variant"`
	KeyPrefix       string `json:"key_prefix" mapstructure:"key_prefix"`
	WebPort         int    `json:"web_port" mapstructure:"web_port"`
	SessionTTLHours int    `json:"session_ttl_hours" mapstructure:"session_ttl_hours"`
	Neo4j           Neo4j  `json:"neo4j" mapstructure:"neo4j"`
}

func Default() Config {
	return Config{
		Backend:         BackendSQLite,
		Variant:         "tracker",
		KeyPrefix:       "DASH",
		WebPort:         8080,
		SessionTTLHours: 24 * 7,
		Neo4j: Neo4j{
			URI:      "neo4j://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
	}
}

func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "dashtrack", "config.json"), nil
}

func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("DASHTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("db_path", def.DBPath)
	v.SetDefault("backend", def.Backend)
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("variant", def.Variant)
	v.SetDefault("key_prefix", def.KeyPrefix)
	v.SetDefault("web_port", def.WebPort)
	v.SetDefault("session_ttl_hours", def.SessionTTLHours)
	v.SetDefault("neo4j.uri", def.Neo4j.URI)
	v.SetDefault("neo4j.username", def.Neo4j.Username)
	v.SetDefault("neo4j.password", def.Neo4j.Password)
	v.SetDefault("neo4j.database", def.Neo4j.Database)
	return v
}

// Load reads path over the defaults; DASHTRACK_* environment variables win
// over both. A missing file is not an error.
func Load(path string) (Config, error) {
	v := newViper(path)

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendFile, BackendNeo4j, BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.WebPort <= 0 || c.WebPort > 65535 {
		return fmt.Errorf("invalid web port %d", c.WebPort)
	}
	if _, err := model.SchemaByName(c.Variant, c.KeyPrefix); err != nil {
		return err
	}
	return nil
}

func Save(path string, cfg Config) error {
	if err := EnsureDir(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}
