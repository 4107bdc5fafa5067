package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadFromBytes loads configuration from YAML bytes with environment variable expansion
func LoadFromBytes(data []byte) (Config, error) {
	var c Config
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &c); err != nil {
		return c, err
	}
	c.applyDefaults()
	return c, nil
}

// MergeFile overlays the YAML file at path onto c. Keys absent from the file
// keep their current values.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	c.applyDefaults()
	return nil
}

// parseBool parses a string as boolean with a default value.
// Accepts: "true", "1", "yes" as true; empty or other values return default.
func parseBool(s string, defaultVal bool) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return defaultVal
	}
	return s == "true" || s == "1" || s == "yes"
}

type Config struct {
	Name string `yaml:"Name"`
	Host string `yaml:"Host"`
	Port int    `yaml:"Port"`
	Log  struct {
		Level  string `yaml:"Level"`
		Format string `yaml:"Format"`
	} `yaml:"Log"`
	Auth struct {
		// AccessSecret signs JWTs accepted by the audio endpoints. Empty
		// leaves them unauthenticated.
		AccessSecret string `yaml:"AccessSecret"`
	} `yaml:"Auth"`
	Database struct {
		SQLitePath string `yaml:"SQLitePath"`
	} `yaml:"Database"`
	Security struct {
		CronSecret    string `yaml:"CronSecret"`
		EncryptionKey string `yaml:"EncryptionKey"`
		UseKeyring    string `yaml:"UseKeyring"`
	} `yaml:"Security"`
	Pregen  PregenConf  `yaml:"Pregen"`
	Storage StorageConf `yaml:"Storage"`
}

type PregenConf struct {
	DefaultMax       int           `yaml:"DefaultMax"`
	MaxLimit         int           `yaml:"MaxLimit"`
	Concurrency      int           `yaml:"Concurrency"`
	MaxAttempts      int           `yaml:"MaxAttempts"`
	BaseDelay        time.Duration `yaml:"BaseDelay"`
	MaxDelay         time.Duration `yaml:"MaxDelay"`
	TimeBudget       time.Duration `yaml:"TimeBudget"`
	DispatchMargin   time.Duration `yaml:"DispatchMargin"`
	CallTimeout      time.Duration `yaml:"CallTimeout"`
	BreakerThreshold int           `yaml:"BreakerThreshold"`
	Schedule         string        `yaml:"Schedule"`
	ScheduleMax      int           `yaml:"ScheduleMax"`
}

type StorageConf struct {
	Backend    string `yaml:"Backend"`
	Dir        string `yaml:"Dir"`
	NATSURL    string `yaml:"NATSURL"`
	NATSBucket string `yaml:"NATSBucket"`
}

const (
	BackendDB   = "db"
	BackendFS   = "fs"
	BackendNATS = "nats"
)

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "pregen"
	}
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "./data/pregen.db"
	}
	p := &c.Pregen
	if p.DefaultMax == 0 {
		p.DefaultMax = 500
	}
	if p.MaxLimit == 0 {
		p.MaxLimit = 5000
	}
	if p.Concurrency == 0 {
		p.Concurrency = 4
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay == 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = 10 * time.Second
	}
	if p.TimeBudget == 0 {
		p.TimeBudget = 5 * time.Minute
	}
	if p.DispatchMargin == 0 {
		p.DispatchMargin = 45 * time.Second
	}
	if p.CallTimeout == 0 {
		p.CallTimeout = 30 * time.Second
	}
	if p.ScheduleMax == 0 {
		p.ScheduleMax = p.DefaultMax
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendDB
	}
	if c.Storage.NATSBucket == "" {
		c.Storage.NATSBucket = "pregen-audio"
	}
}

// Validate reports configuration that would make the service fail later in a
// less obvious way.
func (c Config) Validate() error {
	var errs []error
	if c.Database.SQLitePath == "" {
		errs = append(errs, errors.New("Database.SQLitePath is required"))
	}
	if c.Security.EncryptionKey == "" && !c.IsKeyringEnabled() {
		errs = append(errs, errors.New("no encryption key: set PREGEN_ENCRYPTION_KEY (Security.EncryptionKey) or enable Security.UseKeyring"))
	}
	switch c.Storage.Backend {
	case BackendDB:
	case BackendFS:
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("Storage.Dir is required for the fs backend"))
		}
	case BackendNATS:
		if c.Storage.NATSURL == "" {
			errs = append(errs, errors.New("Storage.NATSURL is required for the nats backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown Storage.Backend %q", c.Storage.Backend))
	}
	if c.Pregen.Concurrency < 1 {
		errs = append(errs, errors.New("Pregen.Concurrency must be at least 1"))
	}
	if c.Pregen.MaxAttempts < 1 {
		errs = append(errs, errors.New("Pregen.MaxAttempts must be at least 1"))
	}
	if c.Pregen.DefaultMax > c.Pregen.MaxLimit {
		errs = append(errs, fmt.Errorf("Pregen.DefaultMax (%d) exceeds Pregen.MaxLimit (%d)", c.Pregen.DefaultMax, c.Pregen.MaxLimit))
	}
	if c.Pregen.DispatchMargin >= c.Pregen.TimeBudget {
		errs = append(errs, errors.New("Pregen.DispatchMargin must be shorter than Pregen.TimeBudget"))
	}
	if c.Pregen.CallTimeout > c.Pregen.DispatchMargin {
		errs = append(errs, fmt.Errorf("Pregen.CallTimeout (%s) must not exceed Pregen.DispatchMargin (%s)", c.Pregen.CallTimeout, c.Pregen.DispatchMargin))
	}
	return errors.Join(errs...)
}

func (c Config) IsKeyringEnabled() bool {
	return parseBool(c.Security.UseKeyring, false)
}

func (c Config) IsTriggerOpen() bool {
	return c.Security.CronSecret == ""
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
