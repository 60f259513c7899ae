package config

import (
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const envPrefix = "REVISION"

// Config holds the server settings. Every field can be set through an
// environment variable prefixed with REVISION_, e.g. REVISION_DB_TYPE.
type Config struct {
	DBType           string        `mapstructure:"db_type"`
	DBDsn            string        `mapstructure:"db_dsn"`
	HTTPPort         string        `mapstructure:"http_port"`
	GRPCPort         string        `mapstructure:"grpc_port"`
	Compression      string        `mapstructure:"compression"`
	RedisAddr        string        `mapstructure:"redis_addr"`
	RedisPassword    string        `mapstructure:"redis_password"`
	StatsCacheTTL    time.Duration `mapstructure:"stats_cache_ttl"`
	KafkaBrokers     string        `mapstructure:"kafka_brokers"`
	KafkaTopic       string        `mapstructure:"kafka_topic"`
	AppendMaxRetries uint64        `mapstructure:"append_max_retries"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	AuditSchedule    string        `mapstructure:"audit_schedule"`
	StatsWarmSched   string        `mapstructure:"stats_warm_schedule"`
	LogLevel         string        `mapstructure:"log_level"`
	LogFormat        string        `mapstructure:"log_format"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("db_type", "sqlite")
	v.SetDefault("db_dsn", ".tmp/db/revision.db")
	v.SetDefault("http_port", "4021")
	v.SetDefault("grpc_port", "4020")
	v.SetDefault("compression", "gzip")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("stats_cache_ttl", time.Minute)
	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_topic", "proposal.versions")
	v.SetDefault("append_max_retries", 5)
	v.SetDefault("request_timeout", 15*time.Second)
	v.SetDefault("audit_schedule", "@every 1h")
	v.SetDefault("stats_warm_schedule", "@every 1m")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// LoadConfig reads the configuration from the environment (and a .env file
// when present).
func LoadConfig() *Config {
	v := viper.New()
	defaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	// AutomaticEnv only applies to keys viper already knows, which the
	// defaults above register.
	if err := v.Unmarshal(cfg); err != nil {
		logrus.Fatalf("error loading config: %v", err)
	}

	return cfg
}

// SetupLogging applies the log level and format to the global logger.
func SetupLogging(cfg *Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.Warnf("unknown log level %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
