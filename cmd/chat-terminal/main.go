// cmd/chat-terminal — 终端聊天客户端: 网关事件流 → 归一化时间线。
//
// 构建:
//
//	go build -o chat-terminal ./cmd/chat-terminal/
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/multi-agent/go-chat-client/internal/chatstate"
	"github.com/multi-agent/go-chat-client/internal/config"
	"github.com/multi-agent/go-chat-client/internal/gateway"
	"github.com/multi-agent/go-chat-client/pkg/logger"
	"github.com/multi-agent/go-chat-client/pkg/util"
)

// flushInterval 流式文本的渲染节拍 (~30fps)。
const flushInterval = 33 * time.Millisecond

// loadEnvFile 从当前目录向上搜索 .env 文件并加载到环境变量。
// 不覆盖已有的环境变量 — 只填充未设置的。
func loadEnvFile() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		f, err := os.Open(envPath)
		if err == nil {
			scanner := bufio.NewScanner(f)
			count := 0
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				parts := strings.SplitN(line, "=", 2)
				if len(parts) != 2 {
					continue
				}
				key := strings.TrimSpace(parts[0])
				val := strings.TrimSpace(parts[1])
				if _, exists := os.LookupEnv(key); !exists {
					if err := os.Setenv(key, val); err != nil {
						logger.Warn("loadEnvFile: setenv failed", "key", key, logger.FieldError, err)
						continue
					}
					count++
				}
			}
			_ = f.Close()
			logger.Info("loaded .env file", logger.FieldPath, envPath, logger.FieldCount, count)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}

func main() {
	loadEnvFile()
	cfg := config.Load()

	// 日志持久化: stderr + 文件 (stdout 留给时间线输出)。
	if err := logger.InitWithFile(cfg.LogDir); err != nil {
		logger.Warn("file logging unavailable", logger.FieldError, err)
	}
	defer logger.ShutdownFileHandler()

	session := flag.String("session", "", "会话 key (默认取 DEFAULT_SESSION_KEY)")
	debug := flag.Bool("debug", false, "调试模式: 启动 HTTP 状态服务")
	flag.Parse()
	sessionKey := util.FirstNonEmpty(*session, cfg.DefaultSessionKey)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink := newTerminalSink(os.Stdout)

	// client → requester → reconciler → router 的装配顺序决定了
	// handler 只能经由间接层拿到 router。
	var router *gateway.Router
	client := gateway.NewClient(gateway.Config{
		URL:             cfg.GatewayURL,
		Token:           cfg.GatewayToken,
		CallTimeout:     time.Duration(cfg.GatewayCallTimeout) * time.Second,
		PingInterval:    time.Duration(cfg.GatewayPingInterval) * time.Second,
		ReadIdleTimeout: time.Duration(cfg.GatewayIdleTimeout) * time.Second,
		MaxReconnects:   cfg.GatewayMaxReconnect,
	}, func(event string, payload json.RawMessage) {
		if router != nil {
			router.Handle(event, payload)
		}
	})
	defer client.Close()

	requester := gateway.NewRequester(client)
	rec := chatstate.NewReconciler(sessionKey, sink, requester, chatstate.Options{
		HistoryLimit:  cfg.HistoryPageSize,
		FallbackDelay: time.Duration(cfg.FallbackDelayMS) * time.Millisecond,
	})
	defer rec.Close()
	router = gateway.NewRouter(rec)

	requester.OnHistory = func(key string, messages []map[string]any) {
		if rec.HydrateHistory(messages) {
			logger.Info("history hydrated",
				logger.FieldSessionKey, key, logger.FieldCount, len(messages))
		}
	}
	requester.OnSessions = func(sessions []gateway.SessionInfo) {
		logger.Debug("session directory refreshed", logger.FieldCount, len(sessions))
	}

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := client.Connect(dialCtx)
	cancel()
	if err != nil {
		logger.Fatal("gateway connect failed", logger.FieldURL, cfg.GatewayURL, logger.FieldError, err)
	}

	// 启动即拉一次历史, 让工具状态与旧消息就位。
	requester.RequestHistory(sessionKey, cfg.HistoryPageSize)

	// 渲染节拍: 合帧后的流式文本按固定频率下屏。
	util.SafeGo(func() {
		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rec.Flush()
			}
		}
	})

	if *debug || cfg.DebugServerEnabled {
		startDebugServer(cfg.DebugServerPort, rec)
	}

	util.SafeGo(func() { readInput(ctx, stop, client, rec, sessionKey) })

	fmt.Printf("connected to %s (session %s) — type a message, /quit to exit\n",
		cfg.GatewayURL, sessionKey)
	<-ctx.Done()
	logger.Info("shutting down")
}

// readInput 逐行读取 stdin: 普通行发送消息, /quit 退出。
func readInput(ctx context.Context, stop func(), client *gateway.Client, rec *chatstate.Reconciler, sessionKey string) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			stop()
			return
		}

		runID := uuid.NewString()
		rec.BeginRun(runID)
		if err := client.SendChat(sessionKey, runID, line); err != nil {
			logger.Warn("send failed", logger.FieldRunID, runID, logger.FieldError, err)
			fmt.Printf("[system] send failed: %v\n", err)
		}
	}
	stop()
}
