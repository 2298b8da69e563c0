package views

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GrainArc/SectorMap/models"
	"github.com/GrainArc/SectorMap/response"
	"github.com/GrainArc/SectorMap/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// 认证网关写入的请求头
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserRole  = "X-User-Role"
	HeaderRequestID = "X-Request-ID"
)

const (
	ctxActor     = "sectormap.actor"
	ctxRequestID = "sectormap.request_id"
)

// RequestID 透传或生成请求 id
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// AccessLog 访问日志：方法、路径、状态、耗时
func AccessLog(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.Info("http_access",
			"request_id", c.GetString(ctxRequestID),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		)
	}
}

// actorFromHeaders 解析认证网关传来的用户 id 与角色
func actorFromHeaders(c *gin.Context) (services.Actor, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.GetHeader(HeaderUserID)), 10, 64)
	if err != nil || id == 0 {
		return services.Actor{}, false
	}
	role := strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderUserRole)))
	return services.Actor{ID: uint(id), Role: role}, true
}

// RequireRole 要求请求带有操作人且角色在 roles 之内；缺少操作人 401，角色不符 403
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromHeaders(c)
		if !ok {
			response.Error(c, http.StatusUnauthorized, "authentication required")
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Set(ctxActor, actor)
				c.Next()
				return
			}
		}
		response.Error(c, http.StatusForbidden, "insufficient role")
	}
}

// 各类操作需要的角色
var (
	EditorRoles = []string{models.RoleEditor, models.RoleAdmin}
	AdminRoles  = []string{models.RoleAdmin}
)

func currentActor(c *gin.Context) services.Actor {
	if v, ok := c.Get(ctxActor); ok {
		if a, ok := v.(services.Actor); ok {
			return a
		}
	}
	return services.Actor{}
}
