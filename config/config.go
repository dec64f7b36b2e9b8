package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Game      GameConfig      `mapstructure:"game"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	LogLevel  string          `mapstructure:"log_level"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
	AllowedOrigin  string `mapstructure:"allowed_origin"`
}

type GameConfig struct {
	InitialTimerSec int           `mapstructure:"initial_timer_sec"`
	MaxPlayers      int           `mapstructure:"max_players"`
	MinPlayers      int           `mapstructure:"min_players"`
	HintPenaltySec  int           `mapstructure:"hint_penalty_sec"`
	MaxHints        int           `mapstructure:"max_hints"`
	FinalWindow     time.Duration `mapstructure:"final_window"`
	RoomTTL         time.Duration `mapstructure:"room_ttl"`
	DemoMode        bool          `mapstructure:"demo_mode"`
	ContentDir      string        `mapstructure:"content_dir"`
}

type SchedulerConfig struct {
	TickInterval     time.Duration `mapstructure:"tick_interval"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
	CleanupInterval  time.Duration `mapstructure:"cleanup_interval"`
}

// SnapshotConfig selects the snapshot store: file, gorm, postgres or none.
type SnapshotConfig struct {
	Driver string `mapstructure:"driver"`
	Dir    string `mapstructure:"dir"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type RateLimitConfig struct {
	ActionsPerMinute int `mapstructure:"actions_per_minute"`
	ChatPer10s       int `mapstructure:"chat_per_10s"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":9090")
	v.SetDefault("server.metrics_address", ":9100")
	v.SetDefault("server.allowed_origin", "*")

	v.SetDefault("game.initial_timer_sec", 1500)
	v.SetDefault("game.max_players", 4)
	v.SetDefault("game.min_players", 2)
	v.SetDefault("game.hint_penalty_sec", 60)
	v.SetDefault("game.max_hints", 2)
	v.SetDefault("game.final_window", 30*time.Second)
	v.SetDefault("game.room_ttl", 30*time.Minute)
	v.SetDefault("game.demo_mode", false)
	v.SetDefault("game.content_dir", "content")

	v.SetDefault("scheduler.tick_interval", time.Second)
	v.SetDefault("scheduler.snapshot_interval", 10*time.Second)
	v.SetDefault("scheduler.cleanup_interval", time.Minute)

	v.SetDefault("snapshot.driver", "file")
	v.SetDefault("snapshot.dir", "data/rooms")

	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "atlas")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "atlas")

	v.SetDefault("ratelimit.actions_per_minute", 10)
	v.SetDefault("ratelimit.chat_per_10s", 8)
}

// LoadConfig reads config.yaml from path when present. Environment variables prefixed
// with ATLAS_ (dots become underscores) override file values; a .env file is loaded first.
func LoadConfig(path string) (config *Config, err error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("atlas")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	err = v.Unmarshal(&config)
	return
}
