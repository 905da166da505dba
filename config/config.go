package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port string
		// 每个客户端 IP 的限流
		RateLimit float64 `mapstructure:"rate_limit"`
		Burst     int
	}
	Log struct {
		Level string
	}
	Store struct {
		// memory | redis | sheets | postgres | sqlite
		Driver string
		DSN    string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Sheets struct {
		SpreadsheetID   string `mapstructure:"spreadsheet_id"`
		CredentialsJSON string `mapstructure:"credentials_json"`
		CredentialsFile string `mapstructure:"credentials_file"`
		MappingRange    string `mapstructure:"mapping_range"`
	}
	Line struct {
		ChannelToken  string   `mapstructure:"channel_token"`
		ChannelSecret string   `mapstructure:"channel_secret"`
		APIBase       string   `mapstructure:"api_base"`
		AllowedGroups []string `mapstructure:"allowed_groups"`
		FriendURL     string   `mapstructure:"friend_url"`
		BotName       string   `mapstructure:"bot_name"`
	}
	Roster struct {
		// category -> 表单/列表名称
		Lists map[string]string
		// 显示名称 -> 游戏名称（无 Sheets 对照表时使用）
		Aliases  map[string]string
		CacheTTL int    `mapstructure:"cache_ttl"`
		ClearAt  string `mapstructure:"clear_at"`
	}
	JWT struct {
		Secret string
	}
}

var C Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.burst", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("sheets.mapping_range", "對照表!A:B")
	v.SetDefault("line.api_base", "https://api.line.me")
	v.SetDefault("line.bot_name", "LeoGPT")
	v.SetDefault("roster.lists", map[string]string{
		"war":    "國戰",
		"attack": "攻城",
		"leave":  "請假",
	})
	v.SetDefault("roster.cache_ttl", 600)
	v.SetDefault("redis.db", 0)

	// 无默认值的键也需注册，AutomaticEnv 才会在 Unmarshal 时生效
	for _, key := range []string{
		"store.dsn", "redis.addr", "redis.password",
		"sheets.spreadsheet_id", "sheets.credentials_json", "sheets.credentials_file",
		"line.channel_token", "line.channel_secret", "line.allowed_groups", "line.friend_url",
		"roster.clear_at", "jwt.secret",
	} {
		if !v.IsSet(key) {
			v.SetDefault(key, "")
		}
	}
}

// Load 读取配置文件，环境变量优先（server.port -> SERVER_PORT）。
// path 为空时只使用默认值与环境变量。
func Load(path string) error {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return err
	}
	C = c
	return nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "redis":
	case "sheets":
		if c.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("sheets.spreadsheet_id is required for the sheets store")
		}
		if c.Sheets.CredentialsJSON == "" && c.Sheets.CredentialsFile == "" {
			return fmt.Errorf("sheets credentials are required for the sheets store")
		}
	case "postgres", "sqlite":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the %s store", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required for the redis store")
	}
	return nil
}
