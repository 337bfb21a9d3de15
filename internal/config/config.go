// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Bot          BotConfig          `mapstructure:"bot"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Codes        CodesConfig        `mapstructure:"codes"`
	Rewards      RewardsConfig      `mapstructure:"rewards"`
	Achievements AchievementsConfig `mapstructure:"achievements"`
}

// ServerConfig holds the HTTP API configuration.
type ServerConfig struct {
	Addr      string        `mapstructure:"addr"`
	Mode      string        `mapstructure:"mode"`
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token    string  `mapstructure:"token"`
	AdminIDs []int64 `mapstructure:"admin_ids"`
	StaffIDs []int64 `mapstructure:"staff_ids"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// CodesConfig holds code issuance configuration.
type CodesConfig struct {
	// Numeric switches purchase/registration codes to 5-digit numeric
	// form for deployments printing on numeric ticket stock.
	Numeric     bool `mapstructure:"numeric"`
	MaxAttempts int  `mapstructure:"max_attempts"`
}

// RewardsConfig holds coin reward amounts.
type RewardsConfig struct {
	Visit             int64         `mapstructure:"visit"`
	BingoDefault      int64         `mapstructure:"bingo_default"`
	MilestoneInterval int           `mapstructure:"milestone_interval"`
	Milestone         int64         `mapstructure:"milestone"`
	TransferTokenTTL  time.Duration `mapstructure:"transfer_token_ttl"`
}

// AchievementDef is a single threshold achievement definition.
// AutoPay achievements credit their reward the moment they unlock;
// the rest sit claimable until the user explicitly claims them.
type AchievementDef struct {
	Slug      string `mapstructure:"slug"`
	Counter   string `mapstructure:"counter"`
	Threshold int    `mapstructure:"threshold"`
	Reward    int64  `mapstructure:"reward"`
	AutoPay   bool   `mapstructure:"auto_pay"`
	Title     string `mapstructure:"title"`
}

// AchievementsConfig holds threshold achievement definitions.
type AchievementsConfig struct {
	Definitions []AchievementDef `mapstructure:"definitions"`
}

// Counter names achievement definitions can reference.
const (
	CounterVisits    = "games_visited"
	CounterPurchases = "tickets_purchased"
	CounterBingo     = "bingo_collected"
)

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase,
	// e.g. BOT_TOKEN, DATABASE_HOST, SERVER_JWT_SECRET.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - env vars can provide all config
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Achievements.Definitions) == 0 {
		cfg.Achievements.Definitions = DefaultAchievements()
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.token_ttl", "24h")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "muzloto")
	v.SetDefault("database.name", "muzloto")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("codes.numeric", false)
	v.SetDefault("codes.max_attempts", 25)

	v.SetDefault("rewards.visit", 100)
	v.SetDefault("rewards.bingo_default", 50)
	v.SetDefault("rewards.milestone_interval", 5)
	v.SetDefault("rewards.milestone", 250)
	v.SetDefault("rewards.transfer_token_ttl", "5m")
}

// DefaultAchievements returns the built-in achievement set used when
// the config file does not override it.
func DefaultAchievements() []AchievementDef {
	return []AchievementDef{
		{Slug: "first_visit", Counter: CounterVisits, Threshold: 1, Reward: 50, Title: "Первый визит"},
		{Slug: "regular", Counter: CounterVisits, Threshold: 5, Reward: 150, Title: "Завсегдатай"},
		{Slug: "veteran", Counter: CounterVisits, Threshold: 10, Reward: 400, Title: "Ветеран"},
		{Slug: "first_ticket", Counter: CounterPurchases, Threshold: 1, Reward: 30, AutoPay: true, Title: "Первая покупка"},
		{Slug: "shopper", Counter: CounterPurchases, Threshold: 3, Reward: 100, AutoPay: true, Title: "Покупатель"},
		{Slug: "collector", Counter: CounterPurchases, Threshold: 5, Reward: 200, AutoPay: true, Title: "Коллекционер"},
		{Slug: "first_bingo", Counter: CounterBingo, Threshold: 1, Reward: 50, Title: "Первое бинго"},
		{Slug: "bingo_master", Counter: CounterBingo, Threshold: 5, Reward: 300, Title: "Мастер бинго"},
	}
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Bot.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsStaff checks if a user ID is in the staff list. Admins count as
// staff.
func (c *Config) IsStaff(userID int64) bool {
	for _, id := range c.Bot.StaffIDs {
		if id == userID {
			return true
		}
	}
	return c.IsAdmin(userID)
}
