package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dyluth/locbridge/internal/register"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when no path is given.
const DefaultPath = "locbridge.yml"

// MaxSeeds is the largest seed count whose bit-block fits one Modbus read.
const MaxSeeds = 125 * register.SlotsPerRegister

// Config represents the top-level locbridge.yml configuration
type Config struct {
	Version  string        `yaml:"version"`
	Instance string        `yaml:"instance"`
	Locator  LocatorConfig `yaml:"locator"`
	PLC      PLCConfig     `yaml:"plc"`
	Seeds    SeedsConfig   `yaml:"seeds"`
	Sync     SyncConfig    `yaml:"sync"`
	Relay    RelayConfig   `yaml:"relay"`
	Redis    RedisConfig   `yaml:"redis"`
	Health   HealthConfig  `yaml:"health"`
	Log      LogConfig     `yaml:"log"`
}

// LocatorConfig describes the Locator's pose stream and JSON-RPC endpoint
type LocatorConfig struct {
	Host           string        `yaml:"host"`
	PosePort       int           `yaml:"pose_port"`
	JSONRPCPort    int           `yaml:"json_rpc_port"`
	UserName       string        `yaml:"user_name"`
	Password       string        `yaml:"password"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// PLCConfig describes the Modbus/TCP connection
type PLCConfig struct {
	Host      string        `yaml:"host"`
	Port      int           `yaml:"port"`
	UnitID    int           `yaml:"unit_id"`
	Timeout   time.Duration `yaml:"timeout"`
	ByteOrder string        `yaml:"byte_order"`
	WordOrder string        `yaml:"word_order"`
}

// SeedsConfig describes the register layout of the seed blocks
type SeedsConfig struct {
	Count             int     `yaml:"count"`
	BitsStartingAddr  uint16  `yaml:"bits_starting_addr"`
	PosesStartingAddr uint16  `yaml:"poses_starting_addr"`
	CurrentPoseAddr   *uint16 `yaml:"current_pose_addr,omitempty"` // defaults to poses_starting_addr
}

// SyncConfig controls polling, backoff and the seed zero motion thresholds
type SyncConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	PoseBackoff    time.Duration `yaml:"pose_backoff"`
	ModbusBackoff  time.Duration `yaml:"modbus_backoff"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	MinTranslation float64       `yaml:"min_translation"`
	MinRotation    float64       `yaml:"min_rotation"`
}

// RelayConfig controls the pose relay
type RelayConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Listen    string  `yaml:"listen"`
	Frequency float64 `yaml:"frequency"`
}

// RedisConfig enables the seed event audit trail
type RedisConfig struct {
	URL string `yaml:"url"`
}

// HealthConfig controls the /healthz server
type HealthConfig struct {
	Port int `yaml:"port"`
}

// LogConfig controls logging
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Version:  "1.0",
		Instance: "default",
		Locator: LocatorConfig{
			Host:           "127.0.0.1",
			PosePort:       9011,
			JSONRPCPort:    8080,
			UserName:       "admin",
			Password:       "admin",
			SessionTimeout: 60 * time.Second,
			RequestTimeout: 5 * time.Second,
		},
		PLC: PLCConfig{
			Port:      502,
			UnitID:    1,
			Timeout:   5 * time.Second,
			ByteOrder: "big",
			WordOrder: "little",
		},
		Seeds: SeedsConfig{
			Count:             16,
			BitsStartingAddr:  16,
			PosesStartingAddr: 32,
		},
		Sync: SyncConfig{
			PollInterval:   500 * time.Millisecond,
			PoseBackoff:    5 * time.Second,
			ModbusBackoff:  3 * time.Second,
			ConnectTimeout: 5 * time.Second,
			MinTranslation: 0.005,
			MinRotation:    0.0087,
		},
		Relay: RelayConfig{
			Listen:    ":9511",
			Frequency: 15,
		},
		Health: HealthConfig{Port: 8080},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads locbridge.yml from path, applies defaults and environment
// overrides, and validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from the environment. Empty variables are ignored.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LOCBRIDGE_PLC_HOST"); v != "" {
		c.PLC.Host = v
	}
	if v := os.Getenv("LOCBRIDGE_LOCATOR_HOST"); v != "" {
		c.Locator.Host = v
	}
	if v := os.Getenv("LOCBRIDGE_LOCATOR_PASSWORD"); v != "" {
		c.Locator.Password = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("LOCBRIDGE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// CurrentPoseAddress returns the start of the seed zero block.
func (c *Config) CurrentPoseAddress() uint16 {
	if c.Seeds.CurrentPoseAddr != nil {
		return *c.Seeds.CurrentPoseAddr
	}
	return c.Seeds.PosesStartingAddr
}

// Orders returns the parsed byte and word order. Call after Validate.
func (c *Config) Orders() register.Orders {
	bo, _ := register.ParseByteOrder(c.PLC.ByteOrder)
	wo, _ := register.ParseWordOrder(c.PLC.WordOrder)
	return register.Orders{Byte: bo, Word: wo}
}

// Validate performs strict validation on the configuration, returning the first problem found
func (c *Config) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}
	if c.Instance == "" {
		return fmt.Errorf("instance cannot be empty")
	}

	if err := c.Locator.validate(); err != nil {
		return err
	}
	if err := c.PLC.validate(); err != nil {
		return err
	}
	if err := c.validateSeeds(); err != nil {
		return err
	}
	if err := c.Sync.validate(); err != nil {
		return err
	}

	if c.Relay.Enabled {
		if c.Relay.Listen == "" {
			return fmt.Errorf("relay.listen is required when relay is enabled")
		}
		if c.Relay.Frequency <= 0 {
			return fmt.Errorf("relay.frequency must be > 0, got %g", c.Relay.Frequency)
		}
	}

	if c.Health.Port != 0 {
		if err := validatePort("health.port", c.Health.Port); err != nil {
			return err
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level: %s (must be 'debug', 'info', 'warn', or 'error')", c.Log.Level)
	}

	return nil
}

func (l *LocatorConfig) validate() error {
	if l.Host == "" {
		return fmt.Errorf("locator.host is required")
	}
	if err := validatePort("locator.pose_port", l.PosePort); err != nil {
		return err
	}
	if err := validatePort("locator.json_rpc_port", l.JSONRPCPort); err != nil {
		return err
	}
	if l.UserName == "" {
		return fmt.Errorf("locator.user_name is required")
	}
	if l.SessionTimeout < time.Second {
		return fmt.Errorf("locator.session_timeout must be at least 1s, got %s", l.SessionTimeout)
	}
	if l.RequestTimeout <= 0 {
		return fmt.Errorf("locator.request_timeout must be > 0, got %s", l.RequestTimeout)
	}
	return nil
}

func (p *PLCConfig) validate() error {
	if p.Host == "" {
		return fmt.Errorf("plc.host is required")
	}
	if err := validatePort("plc.port", p.Port); err != nil {
		return err
	}
	if p.UnitID < 0 || p.UnitID > 255 {
		return fmt.Errorf("plc.unit_id must be 0-255, got %d", p.UnitID)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("plc.timeout must be > 0, got %s", p.Timeout)
	}
	if _, err := register.ParseByteOrder(p.ByteOrder); err != nil {
		return fmt.Errorf("plc.byte_order: %w", err)
	}
	if _, err := register.ParseWordOrder(p.WordOrder); err != nil {
		return fmt.Errorf("plc.word_order: %w", err)
	}
	return nil
}

func (s *SyncConfig) validate() error {
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"sync.poll_interval", s.PollInterval},
		{"sync.pose_backoff", s.PoseBackoff},
		{"sync.modbus_backoff", s.ModbusBackoff},
		{"sync.connect_timeout", s.ConnectTimeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s must be > 0, got %s", d.name, d.d)
		}
	}
	if s.MinTranslation < 0 {
		return fmt.Errorf("sync.min_translation must be >= 0, got %g", s.MinTranslation)
	}
	if s.MinRotation < 0 {
		return fmt.Errorf("sync.min_rotation must be >= 0, got %g", s.MinRotation)
	}
	return nil
}

// validateSeeds checks the three register blocks fit the address space and
// that the seed zero block is disjoint from the command bits. Seed zero may
// coincide exactly with slot 0 of the seed pose block but may not straddle it.
func (c *Config) validateSeeds() error {
	s := c.Seeds
	if s.Count < 1 || s.Count > MaxSeeds {
		return fmt.Errorf("seeds.count must be 1-%d, got %d", MaxSeeds, s.Count)
	}

	bits := block{"command bits", int(s.BitsStartingAddr), register.BitRegisters(s.Count)}
	poses := block{"seed poses", int(s.PosesStartingAddr), s.Count * register.PoseRegisters}
	current := block{"current pose", int(c.CurrentPoseAddress()), register.PoseRegisters}

	for _, b := range []block{bits, poses, current} {
		if b.end() > 65536 {
			return fmt.Errorf("%s block (%d registers at %d) exceeds the register address space", b.name, b.size, b.start)
		}
	}

	if bits.overlaps(poses) {
		return fmt.Errorf("command bits block [%d,%d) overlaps seed poses block [%d,%d)", bits.start, bits.end(), poses.start, poses.end())
	}
	if bits.overlaps(current) {
		return fmt.Errorf("current pose block [%d,%d) overlaps command bits block [%d,%d)", current.start, current.end(), bits.start, bits.end())
	}
	if current.overlaps(poses) && current.start != poses.start {
		return fmt.Errorf("current pose block [%d,%d) overlaps seed poses block [%d,%d) other than at slot 0", current.start, current.end(), poses.start, poses.end())
	}
	return nil
}

type block struct {
	name  string
	start int
	size  int
}

func (b block) end() int {
	return b.start + b.size
}

func (b block) overlaps(o block) bool {
	return b.start < o.end() && o.start < b.end()
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be 1-65535, got %d", name, port)
	}
	return nil
}
