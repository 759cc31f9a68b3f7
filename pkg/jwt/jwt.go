package jwt

import (
	"errors"
	"sync"
	"time"

	"rentflow/pkg/config"

	"github.com/golang-jwt/jwt/v5"
)

// Claims 令牌声明，Subject 为身份提供方的用户ID
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// ExternalID 身份提供方用户ID
func (c *Claims) ExternalID() string {
	return c.Subject
}

// JWTManager JWT管理器
type JWTManager struct {
	secretKey     string
	issuer        string
	tokenDuration time.Duration
}

// NewJWTManager 创建JWT管理器
func NewJWTManager(secretKey, issuer string, tokenDuration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:     secretKey,
		issuer:        issuer,
		tokenDuration: tokenDuration,
	}
}

// GenerateToken 生成JWT令牌（本地开发和测试用，生产令牌由身份提供方签发）
func (manager *JWTManager) GenerateToken(externalID, email string) (string, error) {
	if externalID == "" {
		return "", errors.New("缺少用户标识")
	}
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(manager.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    manager.issuer,
			Subject:   externalID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(manager.secretKey))
}

// VerifyToken 验证JWT令牌
func (manager *JWTManager) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("意外的签名方法")
			}
			return []byte(manager.secretKey), nil
		},
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("无法解析token声明")
	}
	if claims.Subject == "" {
		return nil, errors.New("token缺少subject")
	}

	return claims, nil
}

// GetTokenDuration 获取令牌有效期
func (manager *JWTManager) GetTokenDuration() time.Duration {
	return manager.tokenDuration
}

// 单例实现
var (
	defaultManager *JWTManager
	once           sync.Once
)

// GetJWTManager 获取全局JWT管理器实例
func GetJWTManager() *JWTManager {
	once.Do(func() {
		cfg := config.GetConfig()
		tokenDuration, err := time.ParseDuration(cfg.JWT.TokenDuration)
		if err != nil {
			tokenDuration = 24 * time.Hour
		}
		defaultManager = NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Issuer, tokenDuration)
	})
	return defaultManager
}
