package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	defaultConfigFile = "configs/values_local.yaml"
	envPrefix         = "CONSOLE"
)

const masked = "***"

// Config ...
type Config struct {
	Telegram struct {
		Token          string        `mapstructure:"token"`
		ChatIDs        []int64       `mapstructure:"chat_ids"`
		NotifyLevel    string        `mapstructure:"notify_level"`
		ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
	} `mapstructure:"telegram"`
	DB      string `mapstructure:"db_dsn"`
	Service struct {
		Host      string `mapstructure:"host"`
		AdminPort int    `mapstructure:"admin_port"`
	} `mapstructure:"service"`

	// Торговый сервер: REST и live-канал
	Server struct {
		HTTPURL   string        `mapstructure:"http_url"`
		WSURL     string        `mapstructure:"ws_url"`
		Timeout   time.Duration `mapstructure:"timeout"`
		RateLimit float64       `mapstructure:"rate_limit"` // запросов в секунду
		Burst     int           `mapstructure:"burst"`
	} `mapstructure:"server"`

	Feed struct {
		ReconnectDelay   time.Duration `mapstructure:"reconnect_delay"` // фиксированная пауза, без backoff
		HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
		WriteTimeout     time.Duration `mapstructure:"write_timeout"`
		PingInterval     time.Duration `mapstructure:"ping_interval"` // 0: без keepalive
		ReadLimit        int64         `mapstructure:"read_limit"`
	} `mapstructure:"feed"`

	Journal struct {
		Driver   string `mapstructure:"driver"` // memory | postgres | sqlite
		Path     string `mapstructure:"path"`
		Capacity int    `mapstructure:"capacity"`
	} `mapstructure:"journal"`

	Tracing struct {
		Enabled     bool   `mapstructure:"enabled"`
		Host        string `mapstructure:"host"`
		Port        int    `mapstructure:"port"`
		ServiceName string `mapstructure:"service_name"`
	} `mapstructure:"tracing"`

	Log struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"log"`

	// Дефолты для команд бота
	Defaults struct {
		Symbols      []string `mapstructure:"symbols"`
		RiskPerTrade float64  `mapstructure:"risk_per_trade"`
		MaxDrawdown  float64  `mapstructure:"max_drawdown"`
		StopLoss     int      `mapstructure:"stop_loss"`
		TakeProfit   int      `mapstructure:"take_profit"`
		Bars         int      `mapstructure:"bars"`
		Episodes     int      `mapstructure:"episodes"`
	} `mapstructure:"defaults"`

	settings map[string]interface{}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_ids", []int64{})
	v.SetDefault("telegram.notify_level", "success")
	v.SetDefault("telegram.confirm_timeout", "30s")
	v.SetDefault("db_dsn", "")
	v.SetDefault("service.host", "127.0.0.1")
	v.SetDefault("service.admin_port", 8080)

	v.SetDefault("server.http_url", "http://localhost:8000")
	v.SetDefault("server.ws_url", "ws://localhost:8000/ws")
	v.SetDefault("server.timeout", "10s")
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.burst", 5)

	v.SetDefault("feed.reconnect_delay", "5s")
	v.SetDefault("feed.handshake_timeout", "10s")
	v.SetDefault("feed.write_timeout", "5s")
	v.SetDefault("feed.ping_interval", "20s")
	v.SetDefault("feed.read_limit", 1<<20)

	v.SetDefault("journal.driver", "memory")
	v.SetDefault("journal.path", "journal.db")
	v.SetDefault("journal.capacity", 500)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.host", "localhost")
	v.SetDefault("tracing.port", 6831)
	v.SetDefault("tracing.service_name", "trade-console")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("defaults.symbols", []string{"EURUSDm", "XAUUSDm"})
	v.SetDefault("defaults.risk_per_trade", 0.02)
	v.SetDefault("defaults.max_drawdown", 0.1)
	v.SetDefault("defaults.stop_loss", 50)
	v.SetDefault("defaults.take_profit", 100)
	v.SetDefault("defaults.bars", 100)
	v.SetDefault("defaults.episodes", 100)
}

// явные имена переменных окружения (как было у бота), остальное: CONSOLE_<KEY>
var envBindings = map[string]string{
	"telegram.token":    "TELEGRAM_TOKEN",
	"telegram.chat_ids": "TELEGRAM_CHAT_IDS",
	"db_dsn":            "DATABASE_DSN",
	"server.http_url":   "SERVER_HTTP_URL",
	"server.ws_url":     "SERVER_WS_URL",
	"journal.driver":    "JOURNAL_DRIVER",
	"log.level":         "LOG_LEVEL",
}

// NewConfig читает .env, затем файл из CONFIG_FILE и переменные окружения.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv(configFilePathENV)
	required := path != ""
	if path == "" {
		path = defaultConfigFile
	}
	return Load(path, required)
}

// Load читает конфиг из path. Если файла нет и required=false: работаем на дефолтах.
func Load(path string, required bool) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, errors.Wrapf(err, "bind env %s", env)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, errors.Wrapf(err, "read config %s", path)
			}
		} else if required {
			return nil, errors.Wrapf(err, "config file %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.settings = v.AllSettings()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := checkURL(c.Server.HTTPURL, "http", "https"); err != nil {
		return errors.Wrap(err, "server.http_url")
	}
	if err := checkURL(c.Server.WSURL, "ws", "wss"); err != nil {
		return errors.Wrap(err, "server.ws_url")
	}
	if c.Feed.ReconnectDelay <= 0 {
		return fmt.Errorf("feed.reconnect_delay must be > 0, got %s", c.Feed.ReconnectDelay)
	}
	switch c.Journal.Driver {
	case "memory", "postgres", "sqlite":
	default:
		return fmt.Errorf("journal.driver: unknown driver %q", c.Journal.Driver)
	}
	if c.Journal.Driver == "postgres" && c.DB == "" {
		return fmt.Errorf("journal.driver=postgres requires db_dsn")
	}
	return nil
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("want %s url, got %q", strings.Join(schemes, "/"), raw)
}

// Addr: адрес локального status API.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Service.Host, c.Service.AdminPort)
}

// Dump: эффективный конфиг в YAML, секреты замаскированы.
func (c *Config) Dump() (string, error) {
	settings := c.settings
	if settings == nil {
		settings = map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(settings))
	for k, v := range settings {
		out[k] = v
	}
	if tg, ok := out["telegram"].(map[string]interface{}); ok {
		cp := make(map[string]interface{}, len(tg))
		for k, v := range tg {
			cp[k] = v
		}
		if s, _ := cp["token"].(string); s != "" {
			cp["token"] = masked
		}
		out["telegram"] = cp
	}
	if s, _ := out["db_dsn"].(string); s != "" {
		out["db_dsn"] = maskDSN(s)
	}

	bs, err := yaml.Marshal(out)
	if err != nil {
		return "", errors.Wrap(err, "marshal config to yaml")
	}
	return string(bs), nil
}

func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return masked
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), masked)
	}
	return u.String()
}
