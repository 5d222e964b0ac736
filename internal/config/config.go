package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// PathEnv names the optional YAML file read before the environment.
const PathEnv = "TASKFLOW_CONFIG"

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendNeo4j    = "neo4j"
)

type Config struct {
	Server ServerConfig `koanf:"server"`
	Store  StoreConfig  `koanf:"store"`
	DB     DBConfig     `koanf:"db"`
	Neo4j  Neo4jConfig  `koanf:"neo4j"`
	OpenAI OpenAIConfig `koanf:"openai"`
	JWT    JWTConfig    `koanf:"jwt"`
	NATS   NATSConfig   `koanf:"nats"`
	Log    LogConfig    `koanf:"log"`
	CORS   CORSConfig   `koanf:"cors"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
}

type StoreConfig struct {
	Backend string `koanf:"backend"`
}

type DBConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
}

type Neo4jConfig struct {
	URI      string `koanf:"uri"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
}

type OpenAIConfig struct {
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"`
}

type JWTConfig struct {
	Secret string `koanf:"secret"`
}

// NATSConfig enables the NATS change feed when URL is set; otherwise changes
// are fanned out in process.
type NATSConfig struct {
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type CORSConfig struct {
	Origins string `koanf:"origins"`
}

// Load reads the YAML file named by TASKFLOW_CONFIG, if any, then the
// environment. Environment keys split on the first underscore:
//
//	DB_HOST        -> db.host
//	OPENAI_API_KEY -> openai.api_key
//	STORE_BACKEND  -> store.backend
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(PathEnv); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var sections = map[string]bool{
	"server": true, "store": true, "db": true, "neo4j": true, "openai": true,
	"jwt": true, "nats": true, "log": true, "cors": true,
}

// envKey maps an environment variable to a config key. Variables outside the
// known sections are skipped.
func envKey(s string) string {
	section, rest, ok := strings.Cut(strings.ToLower(s), "_")
	if !ok || !sections[section] {
		return ""
	}
	return section + "." + rest
}

func applyDefaults(c *Config) {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	if c.DB.Port == 0 {
		c.DB.Port = 5432 // fallback
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = "taskflow.aggregates.changed"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendPostgres, BackendNeo4j:
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	if c.Store.Backend == BackendNeo4j && c.Neo4j.URI == "" {
		return fmt.Errorf("neo4j.uri is required for the neo4j backend")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	return nil
}

func (c *Config) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name,
	)
}

// AllowedOrigins splits the comma separated cors.origins value.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORS.Origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
