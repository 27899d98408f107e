// Package config loads server settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ledzpl/linechat/internal/logging"
)

const (
	configName = "linechat"
	envPrefix  = "LINECHAT"
)

type Config struct {
	Server    ServerConfig
	Room      RoomConfig
	Conn      ConnConfig
	WebSocket WebSocketConfig
	Log       logging.Config
}

// ServerConfig lists listener addresses. An empty address disables that transport.
type ServerConfig struct {
	TCPAddr string `mapstructure:"tcp_addr"`
	SSHAddr string `mapstructure:"ssh_addr"`
	HostKey string `mapstructure:"host_key"`
	WSAddr  string `mapstructure:"ws_addr"`
	WSPath  string `mapstructure:"ws_path"`
}

type RoomConfig struct {
	QueueCapacity  int           `mapstructure:"queue_capacity"`
	OutboxSize     int           `mapstructure:"outbox_size"`
	DeliverTimeout time.Duration `mapstructure:"deliver_timeout"`
}

type ConnConfig struct {
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	MaxLineLength int           `mapstructure:"max_line_length"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `mapstructure:"ping_interval"`
	PongWait     time.Duration `mapstructure:"pong_wait"`
}

// Load reads linechat.yaml from configPath (then . and ./config) and applies
// LINECHAT_* environment overrides. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.tcp_addr", "0.0.0.0:8000")
	v.SetDefault("server.ssh_addr", "")
	v.SetDefault("server.host_key", "configs/ssh_host_ed25519")
	v.SetDefault("server.ws_addr", "")
	v.SetDefault("server.ws_path", "/ws")
	v.SetDefault("room.queue_capacity", 128)
	v.SetDefault("room.outbox_size", 64)
	v.SetDefault("room.deliver_timeout", "5s")
	v.SetDefault("conn.write_timeout", "10s")
	v.SetDefault("conn.max_line_length", 4096)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

func (c *Config) validate() error {
	switch {
	case c.Server.TCPAddr == "" && c.Server.SSHAddr == "" && c.Server.WSAddr == "":
		return errors.New("config: at least one of server.tcp_addr, server.ssh_addr, server.ws_addr is required")
	case c.Room.QueueCapacity <= 0:
		return fmt.Errorf("config: room.queue_capacity must be positive, got %d", c.Room.QueueCapacity)
	case c.Room.OutboxSize <= 0:
		return fmt.Errorf("config: room.outbox_size must be positive, got %d", c.Room.OutboxSize)
	case c.Conn.MaxLineLength <= 0:
		return fmt.Errorf("config: conn.max_line_length must be positive, got %d", c.Conn.MaxLineLength)
	case c.WebSocket.PingInterval >= c.WebSocket.PongWait:
		return fmt.Errorf("config: websocket.ping_interval (%s) must be shorter than websocket.pong_wait (%s)",
			c.WebSocket.PingInterval, c.WebSocket.PongWait)
	}
	return nil
}
