// Package config resolves client settings from the environment and an
// optional .env file.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"exam-session/internal/exam"
)

const (
	envPrefix = "EXAM"

	DefaultServerURL   = "http://127.0.0.1:8000"
	DefaultHTTPTimeout = 10 * time.Second
	DefaultDraftsPath  = ".exam-drafts.db"
	DefaultEnv         = "dev"
)

// Config holds the resolved client settings. An empty DraftsPath disables
// local draft persistence.
type Config struct {
	ServerURL    string
	Token        string
	HTTPTimeout  time.Duration
	PageSize     int
	DraftsPath   string
	RollbarToken string
	Env          string
	Debug        bool
	NoColor      bool
}

// Load reads EXAM_* variables. Values in dir/.env are used only where the
// process environment does not set the same variable.
func Load(dir string) (Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetDefault("server_url", DefaultServerURL)
	v.SetDefault("token", "")
	v.SetDefault("http_timeout", DefaultHTTPTimeout)
	v.SetDefault("page_size", exam.DefaultPageSize)
	v.SetDefault("drafts_path", DefaultDraftsPath)
	v.SetDefault("rollbar_token", "")
	v.SetDefault("env", DefaultEnv)
	v.SetDefault("debug", false)
	v.SetDefault("no_color", false)

	if dir != "" {
		dotEnvPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(dotEnvPath); err == nil {
			values, err := godotenv.Read(dotEnvPath)
			if err != nil {
				return Config{}, errors.Wrapf(err, "config.godotenv(%s)", dotEnvPath)
			}
			for key, value := range values {
				name, ok := strings.CutPrefix(key, envPrefix+"_")
				if !ok {
					continue
				}
				v.SetDefault(strings.ToLower(name), value)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, errors.Wrapf(err, "config.os.Stat(%s)", dotEnvPath)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	cfg := Config{
		ServerURL:    strings.TrimRight(strings.TrimSpace(v.GetString("server_url")), "/"),
		Token:        strings.TrimSpace(v.GetString("token")),
		HTTPTimeout:  v.GetDuration("http_timeout"),
		PageSize:     v.GetInt("page_size"),
		DraftsPath:   strings.TrimSpace(v.GetString("drafts_path")),
		RollbarToken: strings.TrimSpace(v.GetString("rollbar_token")),
		Env:          strings.ToLower(strings.TrimSpace(v.GetString("env"))),
		Debug:        v.GetBool("debug"),
		NoColor:      v.GetBool("no_color"),
	}
	cfg.applyFallbacks()
	return cfg, nil
}

func (c *Config) applyFallbacks() {
	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.PageSize <= 0 {
		c.PageSize = exam.DefaultPageSize
	}
	if c.Env == "" {
		c.Env = DefaultEnv
	}
}
