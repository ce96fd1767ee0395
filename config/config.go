package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Game     GameConfig     `mapstructure:"game"`
	Security SecurityConfig `mapstructure:"security"`
	Client   ClientConfig   `mapstructure:"client"`
}

type ServerConfig struct {
	Port   int    `mapstructure:"port"`
	Debug  bool   `mapstructure:"debug"`
	WebDir string `mapstructure:"web_dir"` // Path to the browser client bundle (served at /)
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | sqlite_memory | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
}

type GameConfig struct {
	Rooms           int `mapstructure:"rooms"`             // rooms in a full run
	ChestsPerRoom   int `mapstructure:"chests_per_room"`   // chests gating one question each
	StartHealth     int `mapstructure:"start_health"`      // brightness level at new game
	WrongPenalty    int `mapstructure:"wrong_penalty"`     // health lost per wrong answer
	FrameTickMs     int `mapstructure:"frame_tick_ms"`     // client session loop interval
	LeaderboardSize int `mapstructure:"leaderboard_size"`  // entries returned by /api/leaderboard
	RefreshRankingS int `mapstructure:"refresh_ranking_s"` // leaderboard ZSet rebuild interval
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// ClientConfig configures the headless dungeon client.
type ClientConfig struct {
	ServerURL    string        `mapstructure:"server_url"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"` // /health liveness check
	CallTimeout  time.Duration `mapstructure:"call_timeout"`  // default API timeout
	SavePath     string        `mapstructure:"save_path"`     // local snapshot fallback
	AutosaveS    int           `mapstructure:"autosave_s"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/dungeon.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("game.rooms", 10)
	v.SetDefault("game.chests_per_room", 3)
	v.SetDefault("game.start_health", 100)
	v.SetDefault("game.wrong_penalty", 20)
	v.SetDefault("game.frame_tick_ms", 16)
	v.SetDefault("game.leaderboard_size", 10)
	v.SetDefault("game.refresh_ranking_s", 60)
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)
	v.SetDefault("client.server_url", "http://127.0.0.1:8080")
	v.SetDefault("client.probe_timeout", "2s")
	v.SetDefault("client.call_timeout", "3s")
	v.SetDefault("client.save_path", "./data/save.json")
	v.SetDefault("client.autosave_s", 60)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
