package middleware

import (
	"errors"
	"strings"

	"apex-http-service/internal/app/access"
	"apex-http-service/internal/domain/services"
	"apex-http-service/internal/error/code"
	"apex-http-service/internal/error/response"

	"github.com/gin-gonic/gin"
)

// 上下文键
const (
	ContextUserID = "userID"
	ContextRole   = "role"
	ContextClaims = "claims"
)

// extractToken 从授权头中提取token，scheme 不是 Bearer 时返回 false
func extractToken(authHeader string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(authHeader), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// Authenticate 校验 Bearer 令牌并把用户信息写入上下文
func Authenticate(jwtService services.InterfaceJWTService) gin.HandlerFunc {
	return authenticate(jwtService, false)
}

// AuthenticateWebSocket 浏览器无法为 WebSocket 设置请求头，额外接受 ?token= 参数
func AuthenticateWebSocket(jwtService services.InterfaceJWTService) gin.HandlerFunc {
	return authenticate(jwtService, true)
}

func authenticate(jwtService services.InterfaceJWTService, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		var tokenString string
		switch {
		case authHeader != "":
			var ok bool
			if tokenString, ok = extractToken(authHeader); !ok {
				response.Abort(c, code.ErrTokenInvalid, "Authorization header must use the Bearer scheme")
				return
			}
		case allowQuery && c.Query("token") != "":
			tokenString = c.Query("token")
		default:
			response.Abort(c, code.ErrNoToken, "")
			return
		}

		claims, err := jwtService.ValidateToken(c.Request.Context(), tokenString)
		if err != nil {
			if errors.Is(err, services.ErrTokenExpired) {
				response.Abort(c, code.ErrTokenExpired, "")
				return
			}
			response.Abort(c, code.ErrTokenInvalid, "")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// RequireRoles 要求当前用户具备任一角色，需放在 Authenticate 之后
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !access.RoleAllowed(CurrentRole(c), roles...) {
			response.Abort(c, code.ErrForbidden, "")
			return
		}
		c.Next()
	}
}

// CurrentUserID 当前用户ID，未认证时为 0
func CurrentUserID(c *gin.Context) uint {
	if v, ok := c.Get(ContextUserID); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

// CurrentRole 当前用户角色
func CurrentRole(c *gin.Context) string {
	return c.GetString(ContextRole)
}

// CurrentClaims 当前令牌声明
func CurrentClaims(c *gin.Context) *services.JWTClaims {
	if v, ok := c.Get(ContextClaims); ok {
		if claims, ok := v.(*services.JWTClaims); ok {
			return claims
		}
	}
	return nil
}

// CurrentActor 构造审计用的操作者信息
func CurrentActor(c *gin.Context) services.Actor {
	return services.Actor{
		UserID:    CurrentUserID(c),
		Role:      CurrentRole(c),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
