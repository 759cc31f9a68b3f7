package middleware

import (
	"strings"

	"rentflow/internal/models"
	"rentflow/internal/services"
	"rentflow/pkg/jwt"
	"rentflow/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserKey  = "user"
	ctxActorKey = "actor"
)

// AuthMiddleware 权限中间件
type AuthMiddleware struct {
	identity   *services.IdentityService
	jwtManager *jwt.JWTManager
}

func NewAuthMiddleware(identity *services.IdentityService, jwtManager *jwt.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{
		identity:   identity,
		jwtManager: jwtManager,
	}
}

// RequireLogin 校验 Bearer 令牌并加载本地用户
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Unauthorized(c, "认证头格式错误")
			c.Abort()
			return
		}

		user, ok := m.Authenticate(c, authHeader[7:])
		if !ok {
			c.Abort()
			return
		}

		c.Set(ctxUserKey, user)
		c.Set("user_id", user.ID)
		c.Set(ctxActorKey, services.Actor{UserID: user.ID, Role: user.Role})

		c.Next()
	}
}

// Authenticate 校验令牌并加载用户，失败时已写入响应。websocket 握手时令牌放在查询参数里。
func (m *AuthMiddleware) Authenticate(c *gin.Context, token string) (*models.User, bool) {
	claims, err := m.jwtManager.VerifyToken(token)
	if err != nil {
		response.Unauthorized(c, "Token无效或已过期")
		return nil, false
	}

	// 用户尚未通过 webhook 同步时同样视为未认证
	user, err := m.identity.GetByExternalID(c.Request.Context(), claims.ExternalID())
	if err != nil {
		response.Unauthorized(c, "用户不存在")
		return nil, false
	}

	if !user.IsActive {
		response.Unauthorized(c, "用户已被禁用")
		return nil, false
	}
	return user, true
}

// RequireCapability 要求当前角色具备某项能力
func (m *AuthMiddleware) RequireCapability(capability models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, exists := c.Get(ctxActorKey)
		if !exists {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		if !actor.(services.Actor).Role.Can(capability) {
			response.Forbidden(c, "权限不足：需要 "+string(capability)+" 权限")
			c.Abort()
			return
		}

		c.Next()
	}
}

// CurrentActor 取当前操作人，未登录时返回零值
func CurrentActor(c *gin.Context) services.Actor {
	if v, ok := c.Get(ctxActorKey); ok {
		return v.(services.Actor)
	}
	return services.Actor{}
}

// CurrentUser 取当前登录用户
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(ctxUserKey); ok {
		return v.(*models.User)
	}
	return nil
}
