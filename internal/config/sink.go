package config

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
)

const defaultListenAddr = ":8080"

var optDSN = option{"dsn", "DATABASE_DSN"}

// SinkConfig is the resolved configuration of cmd/sink.
type SinkConfig struct {
	Address  string
	DSN      string
	User     string
	Token    string
	Key      string
	LogLevel string
}

// LoadSinkConfig resolves options with precedence ENV > CLI > config file > defaults.
func LoadSinkConfig(args []string, out io.Writer) (SinkConfig, error) {
	if out == nil {
		out = io.Discard
	}
	fs := newFlagSet("sink", out)
	fs.StringP("config", "c", "", "path to a YAML or JSONC config file")
	fs.StringP(optAddress.flag(), "a", "", fmt.Sprintf("HTTP listen address, default: %s", defaultListenAddr))
	fs.StringP(optDSN.flag(), "d", "", "Postgres DSN; empty keeps points in memory")
	fs.StringP(optUser.flag(), "u", "", "required basic auth user")
	fs.StringP(optToken.flag(), "t", "", "required basic auth token")
	fs.StringP(optKey.flag(), "k", "", "secret key for HashSHA256 verification")
	fs.String(optLogLevel.flag(), defaultLogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return SinkConfig{}, err
	}
	file, err := loadFile(configPath(fs))
	if err != nil {
		return SinkConfig{}, err
	}
	l := layers{fs: fs, file: file}

	addr := normalizeListenAddr(l.str(optAddress, defaultListenAddr))
	if _, port, err := net.SplitHostPort(addr); err != nil || port == "" {
		return SinkConfig{}, fmt.Errorf("invalid listen address: %q", addr)
	}

	return SinkConfig{
		Address:  addr,
		DSN:      l.str(optDSN, ""),
		User:     l.str(optUser, ""),
		Token:    l.str(optToken, ""),
		Key:      l.str(optKey, ""),
		LogLevel: l.str(optLogLevel, defaultLogLevel),
	}, nil
}

func normalizeListenAddr(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultListenAddr
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		if u, err := url.Parse(s); err == nil && u.Host != "" {
			return u.Host
		}
	}
	if !strings.Contains(s, ":") {
		return ":" + s
	}
	return s
}
