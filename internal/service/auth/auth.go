// Package auth 提供基于共享密钥的本地 JWT 校验
// 不依赖外部认证服务，密钥必须与上游签发令牌的密钥一致
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 校验失败的标记错误，调用方据此映射 HTTP 状态码
var (
	ErrTokenExpired     = errors.New("expired")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrMalformedToken   = errors.New("invalid token format")
)

// iat 允许的最大未来偏移，防止时钟漂移或篡改
const maxIssuedAtSkew = 60 * time.Second

// Claims 令牌中提取的用户身份
type Claims struct {
	UserID         string
	Email          string
	OrganizationID string
}

// Service 认证服务
type Service struct {
	secret []byte
}

// NewService 创建认证服务
func NewService(secret string) *Service {
	return &Service{secret: []byte(secret)}
}

// ValidateToken 校验令牌
// 依次检查格式、exp、iat 偏移与 HMAC-SHA256 签名，全部通过才返回 Claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithExpirationRequired())

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrMalformedToken
		}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrMalformedToken
	}

	// iat 不得超前当前时间 60 秒
	if iat, ok := claims["iat"].(float64); ok {
		if time.Unix(int64(iat), 0).After(time.Now().Add(maxIssuedAtSkew)) {
			return nil, ErrMalformedToken
		}
	}

	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return nil, ErrMalformedToken
	}

	result := &Claims{UserID: userID}
	if email, ok := claims["email"].(string); ok {
		result.Email = email
	}
	if meta, ok := claims["user_metadata"].(map[string]interface{}); ok {
		if orgID, ok := meta["organizationId"].(string); ok {
			result.OrganizationID = orgID
		}
	}

	return result, nil
}

// GenerateToken 签发令牌
// 网关自身不签发业务令牌，该函数服务于本地调试与测试
func GenerateToken(secret, userID, email, orgID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	if orgID != "" {
		claims["user_metadata"] = map[string]interface{}{"organizationId": orgID}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
