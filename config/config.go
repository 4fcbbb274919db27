package config

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Collector CollectorConfig `mapstructure:"collector"`
	Transform TransformConfig `mapstructure:"transform"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// MQTTConfig represents the MQTT connection configuration
type MQTTConfig struct {
	Broker    string `mapstructure:"broker"`
	Port      int    `mapstructure:"port"`
	ClientID  string `mapstructure:"client_id"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	Topic     string `mapstructure:"topic"`
	KeepAlive int    `mapstructure:"keepalive"` // seconds
}

// DatabaseConfig represents the database connection configuration
type DatabaseConfig struct {
	Type       string `mapstructure:"type"` // postgres or mysql
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Name       string `mapstructure:"name"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	InitSchema bool   `mapstructure:"init_schema"`
}

// CollectorConfig represents the telemetry collector configuration
type CollectorConfig struct {
	// QualityPolicy selects how measurement quality is classified:
	// "sign" (Good when value > 0, Uncertain otherwise) or "always_good"
	QualityPolicy string `mapstructure:"quality_policy"`
	// DeviceIDPolicy selects how a missing or non-numeric device id is
	// handled: "default_zero" or "reject"
	DeviceIDPolicy string `mapstructure:"device_id_policy"`
	// Database reconnect retry budget per message
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	// Broker reconnect backoff in the collector loop
	Backoff time.Duration `mapstructure:"backoff"`
	// Optional per-channel value ranges; out-of-range values are skipped
	Ranges map[string]Range `mapstructure:"ranges"`
}

// Range represents an allowed value interval for a channel
type Range struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

// TransformConfig represents the optional payload normalizer configuration
type TransformConfig struct {
	ScriptPath string `mapstructure:"script_path"`
	ScriptCode string `mapstructure:"script_code"`
}

// ArchiveConfig represents the optional measurement archive configuration
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggerConfig represents the logging configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	Console    bool   `mapstructure:"console"`
}

// ConfigChangeCallback is invoked with the reloaded configuration
type ConfigChangeCallback func(cfg *Config) error

func setDefaults() {
	viper.SetDefault("mqtt.broker", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.client_id", "pi_mqtt")
	viper.SetDefault("mqtt.username", "pi")
	viper.SetDefault("mqtt.password", "raspberry")
	viper.SetDefault("mqtt.topic", "vbox/summary")
	viper.SetDefault("mqtt.keepalive", 60)

	viper.SetDefault("database.type", "postgres")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.init_schema", false)

	viper.SetDefault("collector.quality_policy", "sign")
	viper.SetDefault("collector.device_id_policy", "default_zero")
	viper.SetDefault("collector.retry_attempts", 5)
	viper.SetDefault("collector.retry_delay", 2*time.Second)
	viper.SetDefault("collector.backoff", 5*time.Second)

	viper.SetDefault("logger.level", "INFO")
	viper.SetDefault("logger.console", true)
}

// Environment variable names kept compatible with the previous deployment
func bindEnv() {
	viper.BindEnv("mqtt.broker", "MQTT_BROKER")
	viper.BindEnv("mqtt.port", "MQTT_PORT")
	viper.BindEnv("mqtt.client_id", "MQTT_CLIENT_ID")
	viper.BindEnv("mqtt.username", "MQTT_USERNAME")
	viper.BindEnv("mqtt.password", "MQTT_PASSWORD")
	viper.BindEnv("mqtt.topic", "MQTT_TOPIC")

	viper.BindEnv("database.type", "DB_TYPE")
	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.name", "DB_NAME")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
}

// LoadConfig loads configuration from the optional config file and the
// environment; an empty path or a missing file means env/defaults only
func LoadConfig(configPath string) (*Config, error) {
	viper.Reset()
	setDefaults()
	bindEnv()

	if configPath != "" {
		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")

		if err := viper.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			log.Printf("config file %s not found, using environment only", configPath)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// WatchConfig watches the config file and invokes the callback on change
func WatchConfig(configPath string, callback ConfigChangeCallback) error {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return err
	}

	viper.SetConfigFile(absPath)
	viper.WatchConfig()

	// Debounce to avoid firing several times for one editor save
	var lastChangeTime time.Time
	var debounceInterval = 2 * time.Second

	viper.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&fsnotify.Write == fsnotify.Write {
			now := time.Now()
			if now.Sub(lastChangeTime) < debounceInterval {
				return
			}
			lastChangeTime = now

			log.Printf("config file changed: %s", e.Name)

			var newConfig Config
			if err := viper.Unmarshal(&newConfig); err != nil {
				log.Printf("failed to parse updated config: %v", err)
				return
			}

			if err := callback(&newConfig); err != nil {
				log.Printf("failed to apply updated config: %v", err)
				return
			}

			log.Println("config updated and applied")
		}
	})

	return nil
}
