package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const envPrefix = "MATCHBOOK_"

type Log struct {
	Level string `yaml:"level"`
	// File, when set, receives a copy of every log line.
	File string `yaml:"file"`
}

type Engine struct {
	// InvariantChecks re-verifies every book aggregate after each mutation.
	// Costs a full book walk per call; meant for tests and staging.
	InvariantChecks bool `yaml:"invariant_checks"`
}

type Outbox struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type Broker struct {
	// Client selects the Kafka client: "kafka-go" or "sarama".
	Client       string        `yaml:"client"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	PollInterval time.Duration `yaml:"poll_interval"`
	// MaxRetries is how many failed passes park a report as FAILED.
	MaxRetries uint32 `yaml:"max_retries"`
	// ClientRetries is the Kafka client's own resend count within one
	// publish attempt. It is not multiplied into MaxRetries.
	ClientRetries int `yaml:"client_retries"`
}

type Metrics struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	Log     Log     `yaml:"log"`
	Engine  Engine  `yaml:"engine"`
	Outbox  Outbox  `yaml:"outbox"`
	Broker  Broker  `yaml:"broker"`
	Metrics Metrics `yaml:"metrics"`
}

func Default() Config {
	return Config{
		Log: Log{
			Level: "info",
		},
		Outbox: Outbox{
			Enabled: false,
			Dir:     "./outbox_data",
		},
		Broker: Broker{
			Client:       "kafka-go",
			Topic:        "matchbook.executions",
			PollInterval: 250 * time.Millisecond,
			MaxRetries:    5,
			ClientRetries: 3,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (if path is non-empty), then a .env file in the working directory, then
// MATCHBOOK_* environment variables. Later sources win.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config %s", path)
		}
	}

	if err := loadDotEnv(".env"); err != nil {
		return cfg, err
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// loadDotEnv exports the variables in path without overriding ones already
// set. A missing file is fine; a malformed one is not.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "load %s", path)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := getEnv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := getEnv("LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := getEnv("INVARIANT_CHECKS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, envPrefix+"INVARIANT_CHECKS")
		}
		cfg.Engine.InvariantChecks = b
	}
	if v := getEnv("OUTBOX_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, envPrefix+"OUTBOX_ENABLED")
		}
		cfg.Outbox.Enabled = b
	}
	if v := getEnv("OUTBOX_DIR"); v != "" {
		cfg.Outbox.Dir = v
	}
	if v := getEnv("BROKER_CLIENT"); v != "" {
		cfg.Broker.Client = v
	}
	if v := getEnv("BROKERS"); v != "" {
		cfg.Broker.Brokers = splitCSV(v)
	}
	if v := getEnv("BROKER_TOPIC"); v != "" {
		cfg.Broker.Topic = v
	}
	if v := getEnv("BROKER_POLL_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, envPrefix+"BROKER_POLL_MS")
		}
		cfg.Broker.PollInterval = time.Duration(ms) * time.Millisecond
	}
	if v := getEnv("BROKER_MAX_RETRIES"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return errors.Wrap(err, envPrefix+"BROKER_MAX_RETRIES")
		}
		cfg.Broker.MaxRetries = uint32(n)
	}
	if v := getEnv("BROKER_CLIENT_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, envPrefix+"BROKER_CLIENT_RETRIES")
		}
		cfg.Broker.ClientRetries = n
	}
	if v := getEnv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	return nil
}

// Validate rejects combinations the driver cannot wire.
func (c Config) Validate() error {
	switch c.Broker.Client {
	case "kafka-go", "sarama":
	default:
		return errors.Errorf("broker.client must be kafka-go or sarama, got %q", c.Broker.Client)
	}
	if c.Broker.ClientRetries < 0 {
		return errors.Errorf("broker.client_retries must not be negative, got %d", c.Broker.ClientRetries)
	}
	if c.Outbox.Enabled && c.Outbox.Dir == "" {
		return errors.New("outbox.dir is required when the outbox is enabled")
	}
	if len(c.Broker.Brokers) > 0 {
		if !c.Outbox.Enabled {
			return errors.New("broker publishing needs the outbox enabled")
		}
		if c.Broker.Topic == "" {
			return errors.New("broker.topic is required when brokers are set")
		}
		if c.Broker.PollInterval <= 0 {
			return errors.New("broker.poll_interval must be positive")
		}
	}
	return nil
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
