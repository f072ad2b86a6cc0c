// Package config 全局配置加载与管理。
//
// 所有字段通过 struct tag 声明环境变量映射:
//
//	`env:"VAR_NAME" default:"value" min:"0"`
//
// Load() 使用反射自动填充，无需手动逐行赋值。
package config

import (
	"github.com/multi-agent/go-chat-client/pkg/util"
)

// Config 应用全局配置，字段名与 .env 变量一一对应。
type Config struct {
	// Gateway
	GatewayURL          string `env:"GATEWAY_URL" default:"ws://127.0.0.1:8765/gateway"`
	GatewayToken        string `env:"GATEWAY_TOKEN"`
	GatewayCallTimeout  int    `env:"GATEWAY_CALL_TIMEOUT_SEC" default:"15" min:"1"`
	GatewayPingInterval int    `env:"GATEWAY_PING_INTERVAL_SEC" default:"30" min:"5"`
	GatewayIdleTimeout  int    `env:"GATEWAY_IDLE_TIMEOUT_SEC" default:"95" min:"10"`
	GatewayMaxReconnect int    `env:"GATEWAY_MAX_RECONNECT" default:"10" min:"0"`

	// 会话
	DefaultSessionKey string `env:"DEFAULT_SESSION_KEY" default:"main"`
	HistoryPageSize   int    `env:"HISTORY_PAGE_SIZE" default:"50" min:"1"`

	// 对账
	FallbackDelayMS int `env:"FALLBACK_DELAY_MS" default:"200" min:"50"`

	// 调试
	DebugServerEnabled bool `env:"DEBUG_SERVER_ENABLED" default:"false"`
	DebugServerPort    int  `env:"DEBUG_SERVER_PORT" default:"7600" min:"1"`

	// 日志
	LogLevel string `env:"LOG_LEVEL" default:"INFO"`
	LogDir   string `env:"LOG_DIR" default:".chat-terminal/logs"`
}

// Load 从环境变量加载配置 (通过反射读取 struct tag)。
func Load() *Config {
	var cfg Config
	util.LoadFromEnv(&cfg)
	return &cfg
}
