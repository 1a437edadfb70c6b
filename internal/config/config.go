package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName  string `env:"APP_NAME" envDefault:"zChat Go Client"`
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	APIURL         string        `env:"CHAT_API_URL,notEmpty"`
	WSURL          string        `env:"CHAT_WS_URL"`
	AccessToken    string        `env:"CHAT_ACCESS_TOKEN,notEmpty"`
	UserID         int64         `env:"CHAT_USER_ID"`
	Username       string        `env:"CHAT_USERNAME"`
	ConversationID int64         `env:"CHAT_CONVERSATION_ID"`
	RequestTimeout time.Duration `env:"CHAT_REQUEST_TIMEOUT" envDefault:"10s"`
	PageSize       int           `env:"CHAT_PAGE_SIZE" envDefault:"50"`
	PingInterval   time.Duration `env:"CHAT_WS_PING_INTERVAL" envDefault:"30s"`

	// Debug HTTP surface
	Host        string   `env:"HTTP_HOST" envDefault:"127.0.0.1"`
	Port        int      `env:"HTTP_PORT" envDefault:"8089"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`

	// Message list layout
	GroupingWindow     time.Duration `env:"LIST_GROUPING_WINDOW" envDefault:"5m"`
	NearBottom         int           `env:"LIST_NEAR_BOTTOM_PX" envDefault:"100"`
	NearTop            int           `env:"LIST_NEAR_TOP_PX" envDefault:"200"`
	Overscan           int           `env:"LIST_OVERSCAN_PX" envDefault:"200"`
	EstimateGrouped    int           `env:"LIST_ESTIMATE_GROUPED_PX" envDefault:"28"`
	EstimateNewGroup   int           `env:"LIST_ESTIMATE_NEW_GROUP_PX" envDefault:"56"`
	EstimateSeparator  int           `env:"LIST_ESTIMATE_SEPARATOR_PX" envDefault:"32"`
	EstimateImageExtra int           `env:"LIST_ESTIMATE_IMAGE_PX" envDefault:"180"`
	EstimateFileExtra  int           `env:"LIST_ESTIMATE_FILE_PX" envDefault:"40"`
	ReducedMotion      bool          `env:"LIST_REDUCED_MOTION" envDefault:"false"`

	// Typing indicators
	TypingIdle    time.Duration `env:"TYPING_IDLE_TIMEOUT" envDefault:"2s"`
	TypingRefresh time.Duration `env:"TYPING_REFRESH_INTERVAL" envDefault:"3s"`
	TypingTTL     time.Duration `env:"TYPING_REMOTE_TTL" envDefault:"5s"`
	ToastTTL      time.Duration `env:"TOAST_TTL" envDefault:"5s"`
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	u, err := url.Parse(cfg.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("CHAT_API_URL must be an http(s) URL")
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("CHAT_PAGE_SIZE must be positive")
	}
	if cfg.GroupingWindow <= 0 {
		return nil, fmt.Errorf("LIST_GROUPING_WINDOW must be positive")
	}
	for i := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
	}
	return cfg, nil
}

func (c *Config) DebugAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WSEndpoint returns CHAT_WS_URL, or the server's /ws endpoint derived from
// the API URL.
func (c *Config) WSEndpoint() string {
	if c.WSURL != "" {
		return c.WSURL
	}
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return ""
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}
