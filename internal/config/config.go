package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/samber/lo"
)

//go:embed defaults.toml
var defaults []byte

var (
	ErrInvalidPort    = errors.New("port must be between 0 and 65535")
	ErrInvalidWorkers = errors.New("workers must be at least 1")
	ErrInvalidMIME    = errors.New("invalid mime mapping")
)

type Config struct {
	Server  ServerConfig      `toml:"server"`
	Site    SiteConfig        `toml:"site"`
	Browser BrowserConfig     `toml:"browser"`
	MIME    map[string]string `toml:"mime"`
}

type ServerConfig struct {
	// Host が空の場合は全インターフェースで待ち受ける
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	Workers         int    `toml:"workers"`
	ShutdownTimeout int    `toml:"shutdown_timeout"` // 秒
}

type SiteConfig struct {
	Name string `toml:"name"`
}

type BrowserConfig struct {
	Open            bool `toml:"open"`
	ProbeAttempts   int  `toml:"probe_attempts"`
	ProbeInterval   int  `toml:"probe_interval"`    // ミリ秒
	ProbeMaxBackoff int  `toml:"probe_max_backoff"` // ミリ秒
}

// Addr は net.Listen に渡すアドレスを返す
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Second
}

func (c BrowserConfig) ProbeIntervalDuration() time.Duration {
	return time.Duration(c.ProbeInterval) * time.Millisecond
}

func (c BrowserConfig) ProbeMaxBackoffDuration() time.Duration {
	return time.Duration(c.ProbeMaxBackoff) * time.Millisecond
}

// Default は埋め込まれた defaults.toml をデコードした設定を返す
func Default() (Config, error) {
	var c Config
	if err := decode(defaults, &c); err != nil {
		return Config{}, fmt.Errorf("failed to decode default config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

// Parse はデフォルト設定の上に data を重ねる。未知のキーはエラーになる。
func Parse(data []byte) (Config, error) {
	c, err := Default()
	if err != nil {
		return Config{}, err
	}

	base := c.MIME
	c.MIME = nil

	if err := decode(data, &c); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if c.MIME == nil {
		c.MIME = make(map[string]string, len(base))
	}
	for ext, typ := range base {
		if _, ok := c.MIME[ext]; !ok {
			c.MIME[ext] = typ
		}
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

func decode(data []byte, c *Config) error {
	return toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(c)
}

func (c Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Server.Port)
	}

	if c.Server.Workers < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Server.Workers)
	}

	invalid, found := lo.Find(lo.Keys(c.MIME), func(ext string) bool {
		return !strings.HasPrefix(ext, ".") || len(ext) < 2 || c.MIME[ext] == ""
	})
	if found {
		return fmt.Errorf("%w: %q", ErrInvalidMIME, invalid)
	}

	return nil
}
