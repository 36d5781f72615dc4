package server

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/chiptable/internal/store"
)

// ServerConfig represents the complete server configuration
type ServerConfig struct {
	Server  *ServerSettings  `hcl:"server,block"`
	Store   *StoreSettings   `hcl:"store,block"`
	Service *ServiceSettings `hcl:"service,block"`
	Tables  []TableConfig    `hcl:"table,block"`
}

// ServerSettings contains listener and logging configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// StoreSettings selects the document store
type StoreSettings struct {
	Driver         string `hcl:"driver,optional"`
	Path           string `hcl:"path,optional"`
	DSN            string `hcl:"dsn,optional"`
	RedisAddr      string `hcl:"redis_addr,optional"`
	RedisDB        int    `hcl:"redis_db,optional"`
	PollIntervalMs int    `hcl:"poll_interval_ms,optional"`
}

// ServiceSettings tunes the optimistic concurrency retry loop
type ServiceSettings struct {
	MaxAttempts    int `hcl:"max_attempts,optional"`
	RetryBackoffMs int `hcl:"retry_backoff_ms,optional"`
}

// TableConfig defines a table created when the server starts. The label is
// used as the table id.
type TableConfig struct {
	Name       string `hcl:"name,label"`
	Host       string `hcl:"host"`
	SmallBlind int    `hcl:"small_blind"`
	BigBlind   int    `hcl:"big_blind"`
	BuyIn      int    `hcl:"buy_in,optional"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	c := &ServerConfig{}
	c.applyDefaults()
	return c
}

// LoadServerConfig loads server configuration from an HCL file. A missing
// file yields the defaults.
func LoadServerConfig(filename string) (*ServerConfig, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultServerConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config ServerConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config.applyDefaults()
	return &config, nil
}

func (c *ServerConfig) applyDefaults() {
	if c.Server == nil {
		c.Server = &ServerSettings{}
	}
	if c.Server.Address == "" {
		c.Server.Address = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	if c.Store == nil {
		c.Store = &StoreSettings{}
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Store.Path == "" {
		c.Store.Path = DefaultStorePath(c.Store.Driver)
	}
	if c.Store.RedisAddr == "" {
		c.Store.RedisAddr = "localhost:6379"
	}
	if c.Store.PollIntervalMs == 0 {
		c.Store.PollIntervalMs = 500
	}

	if c.Service == nil {
		c.Service = &ServiceSettings{}
	}
	if c.Service.MaxAttempts == 0 {
		c.Service.MaxAttempts = 5
	}
	if c.Service.RetryBackoffMs == 0 {
		c.Service.RetryBackoffMs = 20
	}

	for i := range c.Tables {
		if c.Tables[i].BuyIn == 0 {
			c.Tables[i].BuyIn = c.Tables[i].BigBlind * 100 // 100 big blinds
		}
	}
}

// DefaultStorePath returns where a driver keeps its data unless told
// otherwise. Drivers that connect to a server have no path.
func DefaultStorePath(driver string) string {
	switch driver {
	case "file":
		return "tables"
	case "sqlite":
		return "chiptable.db"
	default:
		return ""
	}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if !slices.Contains(store.Drivers, c.Store.Driver) {
		return fmt.Errorf("invalid store driver %q, must be one of %v", c.Store.Driver, store.Drivers)
	}
	if c.Store.Driver == "postgres" && c.Store.DSN == "" {
		return fmt.Errorf("store driver postgres requires a dsn")
	}

	if c.Service.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.Service.MaxAttempts)
	}
	if c.Service.RetryBackoffMs < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}

	seen := make(map[string]bool)
	for _, table := range c.Tables {
		if seen[table.Name] {
			return fmt.Errorf("table %s: defined more than once", table.Name)
		}
		seen[table.Name] = true

		if table.Host == "" {
			return fmt.Errorf("table %s: host is required", table.Name)
		}
		if table.SmallBlind <= 0 {
			return fmt.Errorf("table %s: small blind must be positive", table.Name)
		}
		if table.BigBlind < table.SmallBlind {
			return fmt.Errorf("table %s: big blind must not be less than small blind", table.Name)
		}
		if table.BuyIn < 0 {
			return fmt.Errorf("table %s: buy-in cannot be negative", table.Name)
		}
	}

	return nil
}

// GetServerAddress returns the full server address
func (c *ServerConfig) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// StoreConfig converts the store block into a store.Config
func (c *ServerConfig) StoreConfig() store.Config {
	return store.Config{
		Driver:       c.Store.Driver,
		Path:         c.Store.Path,
		DSN:          c.Store.DSN,
		RedisAddr:    c.Store.RedisAddr,
		RedisDB:      c.Store.RedisDB,
		PollInterval: time.Duration(c.Store.PollIntervalMs) * time.Millisecond,
	}
}

// ServiceOptions converts the service block into GameService options
func (c *ServerConfig) ServiceOptions() ServiceOptions {
	return ServiceOptions{
		MaxAttempts:  c.Service.MaxAttempts,
		RetryBackoff: time.Duration(c.Service.RetryBackoffMs) * time.Millisecond,
	}
}

// GetTableByName returns a table configuration by name
func (c *ServerConfig) GetTableByName(name string) *TableConfig {
	for i := range c.Tables {
		if c.Tables[i].Name == name {
			return &c.Tables[i]
		}
	}
	return nil
}
