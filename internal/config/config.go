// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Device  DeviceConfig  `mapstructure:"device"`
	App     AppConfig     `mapstructure:"app"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"required"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// DeviceConfig represents device-specific configuration
type DeviceConfig struct {
	OperationTimeout  time.Duration    `mapstructure:"operation_timeout"`
	NotifyWaitTimeout time.Duration    `mapstructure:"notify_wait_timeout"`
	MaxRetryAttempts  int              `mapstructure:"max_retry_attempts"`
	RetryDelay        time.Duration    `mapstructure:"retry_delay"`
	SupportedBrands   []string         `mapstructure:"supported_brands"`
	DefaultPort       DevicePortConfig `mapstructure:"default_ports"`
}

// DevicePortConfig represents default port configurations
type DevicePortConfig struct {
	Serial SerialPortConfig `mapstructure:"serial"`
	TCP    TCPPortConfig    `mapstructure:"tcp"`
}

// SerialPortConfig represents serial port configuration
type SerialPortConfig struct {
	BaudRate int           `mapstructure:"baud_rate"`
	DataBits int           `mapstructure:"data_bits"`
	StopBits int           `mapstructure:"stop_bits"`
	Parity   string        `mapstructure:"parity"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TCPPortConfig represents TCP port configuration
type TCPPortConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	NECPort        int           `mapstructure:"nec_port"`
	PJLinkPort     int           `mapstructure:"pjlink_port"`
	KramerPort     int           `mapstructure:"kramer_port"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from file and environment variables. A missing
// config file is not an error; defaults plus environment cover everything.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variable support
	viper.SetEnvPrefix("AVCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
	viper.SetDefault("logging.compress", true)

	// Device defaults
	viper.SetDefault("device.operation_timeout", "10s")
	viper.SetDefault("device.notify_wait_timeout", "3s")
	viper.SetDefault("device.max_retry_attempts", 3)
	viper.SetDefault("device.retry_delay", "2s")
	viper.SetDefault("device.supported_brands", []string{
		"NEC", "PJLINK", "KRAMER", "SAMSUNG", "GENERIC",
	})

	// Device port defaults
	viper.SetDefault("device.default_ports.serial.baud_rate", 9600)
	viper.SetDefault("device.default_ports.serial.data_bits", 8)
	viper.SetDefault("device.default_ports.serial.stop_bits", 1)
	viper.SetDefault("device.default_ports.serial.parity", "none")
	viper.SetDefault("device.default_ports.serial.timeout", "2s")

	viper.SetDefault("device.default_ports.tcp.connect_timeout", "5s")
	viper.SetDefault("device.default_ports.tcp.read_timeout", "2s")
	viper.SetDefault("device.default_ports.tcp.nec_port", 7142)
	viper.SetDefault("device.default_ports.tcp.pjlink_port", 4352)
	viper.SetDefault("device.default_ports.tcp.kramer_port", 5000)

	// App defaults
	viper.SetDefault("app.name", "av-control-service")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	// Validate environment
	validEnvs := []string{"development", "staging", "production", "test"}
	isValidEnv := false
	for _, env := range validEnvs {
		if config.App.Environment == env {
			isValidEnv = true
			break
		}
	}
	if !isValidEnv {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	// Validate logging level
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	isValidLevel := false
	for _, level := range validLevels {
		if config.Logging.Level == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	if config.Device.OperationTimeout <= 0 {
		return fmt.Errorf("device.operation_timeout must be positive")
	}
	if config.Device.NotifyWaitTimeout <= 0 {
		return fmt.Errorf("device.notify_wait_timeout must be positive")
	}

	return nil
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}
