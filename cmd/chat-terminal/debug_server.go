// debug_server.go — 调试模式 HTTP 服务: 浏览器直接查看对账器状态。
//
// 启动方式: ./chat-terminal --debug
// 访问地址: http://localhost:7600
package main

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/multi-agent/go-chat-client/internal/chatstate"
	"github.com/multi-agent/go-chat-client/pkg/logger"
	"github.com/multi-agent/go-chat-client/pkg/util"
)

// startDebugServer 在后台启动只读状态服务。
func startDebugServer(port int, rec *chatstate.Reconciler) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/api/state", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": rec.Snapshot()})
	})
	r.GET("/api/tools", func(c *gin.Context) {
		snap := rec.Snapshot()
		c.JSON(http.StatusOK, gin.H{"success": true, "data": snap.Tools})
	})

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	util.SafeGo(func() {
		logger.Info("debug server listening", logger.FieldAddr, addr)
		if err := r.Run(addr); err != nil {
			logger.Error("debug server exited", logger.FieldError, err)
		}
	})
}
