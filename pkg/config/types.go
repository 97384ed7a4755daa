package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/mfreeman451/boardwatch/pkg/alerts"
	"github.com/mfreeman451/boardwatch/pkg/kv"
	"github.com/mfreeman451/boardwatch/pkg/models"
)

// ServerConfig represents the configuration for the API server.
type ServerConfig struct {
	ListenAddr       string                 `mapstructure:"listen_addr"`
	GrpcAddr         string                 `mapstructure:"grpc_addr"` // empty disables the health endpoint
	ConnectionString string                 `mapstructure:"connection_string"`
	StatusTimeout    time.Duration          `mapstructure:"status_timeout"`
	GatewayTimeout   time.Duration          `mapstructure:"gateway_timeout"`
	MonitorInterval  time.Duration          `mapstructure:"monitor_interval"` // 0 disables the expiry monitor
	HeartbeatSecret  string                 `mapstructure:"heartbeat_secret"`
	RateLimit        float64                `mapstructure:"rate_limit"` // requests per second, 0 disables
	RateBurst        int                    `mapstructure:"rate_burst"`
	LogLevel         string                 `mapstructure:"log_level"`
	LogPretty        bool                   `mapstructure:"log_pretty"`
	Webhooks         []alerts.WebhookConfig `mapstructure:"webhooks"`
}

func (*ServerConfig) Defaults() map[string]any {
	return map[string]any{
		"listen_addr":       ":8080",
		"grpc_addr":         "",
		"connection_string": "",
		"status_timeout":    models.DefaultStatusTimeout,
		"gateway_timeout":   models.DefaultStatusTimeout,
		"monitor_interval":  time.Duration(0),
		"heartbeat_secret":  "",
		"rate_limit":        0.0,
		"rate_burst":        20,
		"log_level":         "info",
		"log_pretty":        false,
	}
}

func (*ServerConfig) EnvAliases() map[string][]string {
	return map[string][]string{
		"connection_string": {"TABLES_CONNECTION_STRING"},
		"heartbeat_secret":  {"PI_HEARTBEAT_SECRET"},
	}
}

// Validate reports a missing store connection string as a configuration error.
func (c *ServerConfig) Validate() error {
	if c.ConnectionString == "" {
		return fmt.Errorf("%w: %w", models.ErrConfiguration, kv.ErrMissingConnectionString)
	}

	if c.ListenAddr == "" {
		return fmt.Errorf("%w: listen_addr is required", models.ErrConfiguration)
	}

	if c.StatusTimeout <= 0 || c.GatewayTimeout <= 0 {
		return fmt.Errorf("%w: status timeouts must be positive", models.ErrConfiguration)
	}

	if c.MonitorInterval < 0 || c.RateLimit < 0 {
		return fmt.Errorf("%w: monitor_interval and rate_limit must not be negative", models.ErrConfiguration)
	}

	for i, wh := range c.Webhooks {
		if wh.Enabled && wh.URL == "" {
			return fmt.Errorf("%w: webhooks[%d] is enabled without a url", models.ErrConfiguration, i)
		}
	}

	return nil
}

// GatewayConfig represents the configuration for the Pi-side agent.
type GatewayConfig struct {
	APIURL              string        `mapstructure:"api_url"`
	GatewayID           string        `mapstructure:"gateway_id"`
	DeviceID            string        `mapstructure:"device_id"` // command queue to drain
	BoardID             string        `mapstructure:"board_id"`  // status row for the attached board
	HeartbeatInterval   time.Duration `mapstructure:"heartbeat_interval"`
	CommandPollInterval time.Duration `mapstructure:"command_poll_interval"`
	BoardTimeout        time.Duration `mapstructure:"board_timeout"`
	ReconnectDelay      time.Duration `mapstructure:"reconnect_delay"`
	SerialDevice        string        `mapstructure:"serial_device"`
	BaudRate            int           `mapstructure:"baud_rate"`
	Secret              string        `mapstructure:"secret"`
	LogLevel            string        `mapstructure:"log_level"`
	LogPretty           bool          `mapstructure:"log_pretty"`
}

func (*GatewayConfig) Defaults() map[string]any {
	return map[string]any{
		"api_url":               "http://localhost:8080",
		"gateway_id":            models.DefaultGatewayID,
		"device_id":             models.DefaultCommandDevice,
		"board_id":              models.DefaultBoardID,
		"heartbeat_interval":    30 * time.Second,
		"command_poll_interval": 2 * time.Second,
		"board_timeout":         10 * time.Second,
		"reconnect_delay":       5 * time.Second,
		"serial_device":         "/dev/ttyAMA0",
		"baud_rate":             38400,
		"secret":                "",
		"log_level":             "info",
		"log_pretty":            false,
	}
}

func (*GatewayConfig) EnvAliases() map[string][]string {
	return map[string][]string{
		"secret": {"PI_HEARTBEAT_SECRET"},
	}
}

func (c *GatewayConfig) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: api_url must be an http(s) URL, got %q", models.ErrConfiguration, c.APIURL)
	}

	if c.GatewayID == "" || c.DeviceID == "" || c.BoardID == "" {
		return fmt.Errorf("%w: gateway_id, device_id and board_id are required", models.ErrConfiguration)
	}

	if c.HeartbeatInterval <= 0 || c.CommandPollInterval <= 0 || c.BoardTimeout <= 0 || c.ReconnectDelay <= 0 {
		return fmt.Errorf("%w: intervals must be positive", models.ErrConfiguration)
	}

	if c.SerialDevice == "" {
		return fmt.Errorf("%w: serial_device is required", models.ErrConfiguration)
	}

	if c.BaudRate <= 0 {
		return fmt.Errorf("%w: baud_rate must be positive", models.ErrConfiguration)
	}

	return nil
}
