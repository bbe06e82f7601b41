package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Project settings
	ProjectPath string

	// Output settings
	OutputJSONFile string
	OutputJSONDir  string
	Store          string

	// Execution settings. Timeout only overrides the suite's own default
	// when TimeoutSet; zero then disables the bound.
	Timeout    time.Duration
	TimeoutSet bool

	// Database settings for the mysql store
	Database Database

	// Command flags
	Flags Flags
}

// Database holds MySQL connection settings
type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// Flags holds command-line flags
type Flags struct {
	NameFilter string
	FailFast   bool
	OnlyFailed bool
	OpenFaills bool
	Timeout    time.Duration
	TimeoutSet bool
	Store      string
	Verbose    bool
}

// New creates a new Config with defaults
func New() *Config {
	return &Config{
		ProjectPath:    DefaultProjectPath,
		OutputJSONFile: DefaultOutputJSONFile,
		OutputJSONDir:  DefaultOutputJSONDir,
		Store:          DefaultStore,
		Timeout:        DefaultTimeout,
		Database: Database{
			Host: "127.0.0.1",
			Port: "3306",
			User: "root",
			Name: DefaultDatabaseName,
		},
	}
}

// LoadEnv reads <ProjectPath>/.env, if present, and applies GEST_* and DB_*
// variables. Variables already set in the environment win over .env.
func (c *Config) LoadEnv() error {
	envPath := filepath.Join(c.ProjectPath, ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load %s: %w", envPath, err)
	}
	return c.applyEnv(os.Getenv)
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("GEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid GEST_TIMEOUT %q: %w", v, err)
		}
		c.Timeout = d
		c.TimeoutSet = true
	}
	if v := getenv("GEST_STORE"); v != "" {
		c.Store = strings.ToLower(v)
	}
	if v := getenv("GEST_OUTPUT_DIR"); v != "" {
		c.OutputJSONDir = v
	}
	if v := getenv("DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := getenv("DB_PORT"); v != "" {
		c.Database.Port = v
	}
	if v := getenv("DB_USERNAME"); v != "" {
		c.Database.User = v
	}
	if v := getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := getenv("DB_DATABASE"); v != "" {
		c.Database.Name = v
	}
	return nil
}

// ApplyFlags overlays command-line flags on the loaded configuration
func (c *Config) ApplyFlags(flags Flags) error {
	c.Flags = flags
	if flags.TimeoutSet {
		c.Timeout = flags.Timeout
		c.TimeoutSet = true
	}
	if flags.Store != "" {
		c.Store = strings.ToLower(flags.Store)
	}
	return c.Validate()
}

// Validate checks values that can come from the environment or flags
func (c *Config) Validate() error {
	switch c.Store {
	case StoreJSON, StoreMySQL:
	default:
		return fmt.Errorf("unknown store %q (expected %s or %s)", c.Store, StoreJSON, StoreMySQL)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}

// GetOutputPath returns the full path to the output JSON file.
// Resolves to an absolute path so run and faills always read/write the same file regardless of cwd.
func (c *Config) GetOutputPath() string {
	dir := c.OutputJSONDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(c.ProjectPath, dir)
	}
	p := filepath.Join(dir, c.OutputJSONFile)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// GetServerDSN returns the DSN of the MySQL server without selecting a database
func (c *Config) GetServerDSN() string {
	return c.mysqlConfig("").FormatDSN()
}

// GetDSN returns the DSN of the results database
func (c *Config) GetDSN() string {
	return c.mysqlConfig(c.Database.Name).FormatDSN()
}

func (c *Config) mysqlConfig(dbName string) *mysql.Config {
	d := c.Database
	mc := mysql.NewConfig()
	mc.User = d.User
	mc.Passwd = d.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(d.Host, d.Port)
	mc.DBName = dbName
	mc.ParseTime = true
	return mc
}
