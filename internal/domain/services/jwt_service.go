package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"apex-http-service/internal/domain/models"
	"apex-http-service/internal/infrastructure/config"
	Logger "apex-http-service/pkg/logger"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenRevoked = fmt.Errorf("%w: revoked", ErrTokenInvalid)
)

// InterfaceJWTService 定义JWT服务接口
type InterfaceJWTService interface {
	GenerateToken(user *models.User) (string, time.Time, error)
	ValidateToken(ctx context.Context, tokenString string) (*JWTClaims, error)
	DecodeToken(tokenString string) (*JWTClaims, error)
	Revoke(ctx context.Context, claims *JWTClaims) error
	RevokeUser(ctx context.Context, userID uint) error
}

// TokenRevocationStore 吊销令牌存储
type TokenRevocationStore interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
	// 用户级吊销：签发时间不晚于 at 的令牌全部失效
	RevokeUserTokens(ctx context.Context, userID uint, at time.Time, ttl time.Duration) error
	UserTokensRevokedAt(ctx context.Context, userID uint) (time.Time, bool, error)
}

// JWTClaims 定义JWT令牌的声明结构
type JWTClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTService 提供JWT相关服务
type JWTService struct {
	secretKey []byte
	issuer    string
	expiresIn time.Duration
	store     TokenRevocationStore
}

// NewJWTService 创建一个新的JWT服务，store 为空时使用内存存储
func NewJWTService(cfg *config.Config, store TokenRevocationStore) InterfaceJWTService {
	if store == nil {
		store = NewMemoryRevocationStore()
	}
	return &JWTService{
		secretKey: []byte(cfg.JWTSecretKey),
		issuer:    cfg.JWTIssuer,
		expiresIn: cfg.JWTExpiresIn,
		store:     store,
	}
}

// 1 GenerateToken 生成JWT令牌，返回令牌和过期时间
func (s *JWTService) GenerateToken(user *models.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.expiresIn)

	claims := &JWTClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   fmt.Sprint(user.ID),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// 2 ValidateToken 验证签名、时间、签发者和吊销状态
func (s *JWTService) ValidateToken(ctx context.Context, tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// 验证签名算法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid || claims.Issuer != s.issuer || claims.ID == "" {
		return nil, ErrTokenInvalid
	}

	revoked, err := s.store.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		// 存储不可用时不阻断请求
		Logger.Warning("检查令牌吊销状态失败: %v", err)
	} else if revoked {
		return nil, ErrTokenRevoked
	}

	revokedAt, ok, err := s.store.UserTokensRevokedAt(ctx, claims.UserID)
	if err != nil {
		Logger.Warning("检查用户令牌吊销状态失败: %v", err)
	} else if ok && (claims.IssuedAt == nil || claims.IssuedAt.Unix() <= revokedAt.Unix()) {
		// iat 精度为秒，同一秒内签发的令牌一并失效
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// 3 DecodeToken 不验证签名读取声明
func (s *JWTService) DecodeToken(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// 4 Revoke 吊销令牌直到其自然过期
func (s *JWTService) Revoke(ctx context.Context, claims *JWTClaims) error {
	if claims == nil || claims.ID == "" {
		return ErrTokenInvalid
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	return s.store.RevokeToken(ctx, claims.ID, ttl)
}

// 5 RevokeUser 吊销该用户此前签发的所有令牌，记录保留一个令牌有效期
func (s *JWTService) RevokeUser(ctx context.Context, userID uint) error {
	return s.store.RevokeUserTokens(ctx, userID, time.Now(), s.expiresIn)
}

// MemoryRevocationStore 未启用Redis时的内存吊销列表
type MemoryRevocationStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	users   map[uint]userRevocation
}

type userRevocation struct {
	at      time.Time
	expires time.Time
}

// NewMemoryRevocationStore 创建内存吊销列表
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		revoked: make(map[string]time.Time),
		users:   make(map[uint]userRevocation),
	}
}

// RevokeToken 记录吊销，同时清理已过期的记录
func (m *MemoryRevocationStore) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for id, exp := range m.revoked {
		if now.After(exp) {
			delete(m.revoked, id)
		}
	}
	m.revoked[jti] = now.Add(ttl)
	return nil
}

// IsTokenRevoked 判断是否已吊销
func (m *MemoryRevocationStore) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.revoked[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(exp) {
		delete(m.revoked, jti)
		return false, nil
	}
	return true, nil
}

// RevokeUserTokens 记录用户级吊销时间
func (m *MemoryRevocationStore) RevokeUserTokens(_ context.Context, userID uint, at time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = userRevocation{at: at, expires: time.Now().Add(ttl)}
	return nil
}

// UserTokensRevokedAt 返回用户级吊销时间
func (m *MemoryRevocationStore) UserTokensRevokedAt(_ context.Context, userID uint) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.users[userID]
	if !ok {
		return time.Time{}, false, nil
	}
	if time.Now().After(r.expires) {
		delete(m.users, userID)
		return time.Time{}, false, nil
	}
	return r.at, true, nil
}
