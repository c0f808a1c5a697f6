package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/dougsko/microfm/pkg/nvram"
)

// maxStorageSize is the largest image a 16-bit address can reach.
const maxStorageSize = 1 << 16

// Config represents the microfm configuration
type Config struct {
	Tuner struct {
		// Bus selects the transport: "mock" (simulated chip) or "i2c"
		Bus          string `yaml:"bus"`
		I2CBus       string `yaml:"i2c_bus"`
		WriteAddress int    `yaml:"write_address"`
		SettleDelay  int    `yaml:"settle_delay_ms"`

		// Stations the simulated chip reports as receivable (channel numbers)
		MockStations []int `yaml:"mock_stations"`
	} `yaml:"tuner"`

	Controller struct {
		TickInterval     int `yaml:"tick_interval_ms"`
		VolumeSaveTicks  int `yaml:"volume_save_ticks"`
		ChannelSaveTicks int `yaml:"channel_save_ticks"`
		MemoryIdleTicks  int `yaml:"memory_idle_ticks"`
		RecallSettle     int `yaml:"recall_settle_ms"`
	} `yaml:"controller"`

	Presets struct {
		FormatOnBoot bool `yaml:"format_on_boot"`
	} `yaml:"presets"`

	Storage struct {
		Backend      string `yaml:"backend"`
		DatabasePath string `yaml:"database_path"`
		BaseAddress  int    `yaml:"base_address"`
		Size         int    `yaml:"size"`
		ErasedValue  int    `yaml:"erased_value"`
	} `yaml:"storage"`

	Hardware struct {
		GPIO        string `yaml:"gpio"`
		ActiveLow   bool   `yaml:"active_low"`
		SeekUpPin   string `yaml:"seek_up_pin"`
		SeekDnPin   string `yaml:"seek_down_pin"`
		VolUpPin    string `yaml:"volume_up_pin"`
		VolDnPin    string `yaml:"volume_down_pin"`
		MemoryPin   string `yaml:"memory_pin"`
		StereoLED   string `yaml:"stereo_led_pin"`
		PresetLED   string `yaml:"preset_led_pin"`
		DisplayTTY  string `yaml:"display_serial_port"`
		DisplayBaud int    `yaml:"display_baud_rate"`
	} `yaml:"hardware"`

	API struct {
		UnixSocket string `yaml:"unix_socket"`
	} `yaml:"api"`

	Web struct {
		Enabled     bool   `yaml:"enabled"`
		Port        int    `yaml:"port"`
		BindAddress string `yaml:"bind_address"`
	} `yaml:"web"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSize    int    `yaml:"max_size"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"`
		Compress   bool   `yaml:"compress"`
		Console    bool   `yaml:"console"`
		Structured bool   `yaml:"structured"`
	} `yaml:"logging"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.Presets.FormatOnBoot = true
	cfg.Storage.ErasedValue = -1
	cfg.applyDefaults()
	return cfg
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{}
	config.Presets.FormatOnBoot = true
	config.Storage.ErasedValue = -1
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Tuner.Bus == "" {
		c.Tuner.Bus = "mock"
	}
	if c.Tuner.I2CBus == "" {
		c.Tuner.I2CBus = "1"
	}
	if c.Tuner.WriteAddress == 0 {
		c.Tuner.WriteAddress = 0x20
	}
	if c.Tuner.SettleDelay == 0 {
		c.Tuner.SettleDelay = 5
	}
	if c.Controller.TickInterval == 0 {
		c.Controller.TickInterval = 5
	}
	if c.Controller.VolumeSaveTicks == 0 {
		c.Controller.VolumeSaveTicks = 350
	}
	if c.Controller.ChannelSaveTicks == 0 {
		c.Controller.ChannelSaveTicks = 1000
	}
	if c.Controller.MemoryIdleTicks == 0 {
		c.Controller.MemoryIdleTicks = 2000
	}
	if c.Controller.RecallSettle == 0 {
		c.Controller.RecallSettle = 50
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "sqlite"
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "./microfm.db"
	}
	if c.Storage.Size == 0 {
		c.Storage.Size = 128
	}
	if c.Storage.ErasedValue < 0 {
		c.Storage.ErasedValue = 0xFF
	}
	if c.Hardware.GPIO == "" {
		c.Hardware.GPIO = "none"
	}
	if c.Hardware.DisplayBaud == 0 {
		c.Hardware.DisplayBaud = 115200
	}
	if c.API.UnixSocket == "" {
		c.API.UnixSocket = "/tmp/microfm.sock"
	}
	if c.Web.Port == 0 {
		c.Web.Port = 8080
	}
	if c.Web.BindAddress == "" {
		c.Web.BindAddress = "0.0.0.0"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSize == 0 {
		c.Logging.MaxSize = 10
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAge == 0 {
		c.Logging.MaxAge = 28
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Tuner.Bus {
	case "mock", "i2c":
	default:
		return fmt.Errorf("unknown tuner bus %q", c.Tuner.Bus)
	}
	if c.Tuner.WriteAddress < 0 || c.Tuner.WriteAddress > 0xFE || c.Tuner.WriteAddress%2 != 0 {
		return fmt.Errorf("tuner write address 0x%02x must be an even 8-bit address", c.Tuner.WriteAddress)
	}
	for _, ch := range c.Tuner.MockStations {
		if ch < 0 || ch > 1023 {
			return fmt.Errorf("mock station channel %d out of range", ch)
		}
	}
	if c.Controller.TickInterval < 0 {
		return fmt.Errorf("tick interval cannot be negative")
	}
	if c.Controller.VolumeSaveTicks <= 0 || c.Controller.ChannelSaveTicks <= 0 || c.Controller.MemoryIdleTicks <= 0 {
		return fmt.Errorf("controller tick thresholds must be positive")
	}
	switch c.Storage.Backend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Size <= 0 || c.Storage.Size > maxStorageSize {
		return fmt.Errorf("storage size %d must be between 1 and %d bytes", c.Storage.Size, maxStorageSize)
	}
	if c.Storage.BaseAddress < 0 || c.Storage.BaseAddress+nvram.LayoutSize > c.Storage.Size {
		return fmt.Errorf("storage base address %d does not fit in %d bytes", c.Storage.BaseAddress, c.Storage.Size)
	}
	if c.Storage.ErasedValue > 0xFF {
		return fmt.Errorf("erased value 0x%x is not a byte", c.Storage.ErasedValue)
	}
	switch c.Hardware.GPIO {
	case "none", "periph":
	default:
		return fmt.Errorf("unknown gpio backend %q", c.Hardware.GPIO)
	}
	if c.Web.Enabled && (c.Web.Port <= 0 || c.Web.Port > 65535) {
		return fmt.Errorf("web port %d out of range", c.Web.Port)
	}
	return nil
}

// Save writes the configuration back to a YAML file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Tick returns the main loop period
func (c *Config) Tick() time.Duration {
	return time.Duration(c.Controller.TickInterval) * time.Millisecond
}

// Millis converts a millisecond setting into a duration
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
