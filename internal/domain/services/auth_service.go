package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"apex-http-service/internal/domain/models"
	"apex-http-service/pkg/utils"

	"gorm.io/gorm"
)

// LoginInput 登录请求，email 和 username 任选其一
type LoginInput struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password" binding:"required"`
}

// LoginResult 表示登录结果
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// InterfaceAuthService 认证服务接口
type InterfaceAuthService interface {
	Login(ctx context.Context, actor Actor, in LoginInput) (*LoginResult, error)
	Refresh(ctx context.Context, actor Actor, claims *JWTClaims) (*LoginResult, error)
	Logout(ctx context.Context, actor Actor, claims *JWTClaims) error
	Me(ctx context.Context, userID uint) (*models.User, error)
}

// AuthService 处理登录、刷新和注销
type AuthService struct {
	DB    *gorm.DB
	JWT   InterfaceJWTService
	Audit InterfaceAuditService
}

// NewAuthService 创建认证服务
func NewAuthService(db *gorm.DB, jwtService InterfaceJWTService, audit InterfaceAuditService) InterfaceAuthService {
	return &AuthService{DB: db, JWT: jwtService, Audit: audit}
}

// 1 Login 校验账号密码并签发令牌
func (s *AuthService) Login(ctx context.Context, actor Actor, in LoginInput) (*LoginResult, error) {
	identifier := strings.TrimSpace(in.Email)
	column := "email"
	if identifier == "" {
		identifier = strings.TrimSpace(in.Username)
		column = "username"
	} else {
		identifier = strings.ToLower(identifier)
	}
	if identifier == "" || in.Password == "" {
		return nil, ErrInvalidCredentials
	}

	var user models.User
	err := s.DB.WithContext(ctx).Where(column+" = ?", identifier).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.Audit.Record(ctx, actor, AuditLoginFailed, "auth", nil, map[string]string{column: identifier}, false)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !utils.CheckPasswordHash(in.Password, user.Password) {
		actor.UserID = user.ID
		s.Audit.Record(ctx, actor, AuditLoginFailed, "auth", user.ID, nil, false)
		return nil, ErrInvalidCredentials
	}
	if user.Status != models.UserStatusActive {
		return nil, ErrAccountInactive
	}

	result, err := s.issue(&user)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.DB.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	actor.UserID, actor.Role = user.ID, user.Role
	s.Audit.Record(ctx, actor, AuditLogin, "auth", user.ID, nil, true)
	return result, nil
}

// 2 Refresh 换发新令牌并吊销旧令牌
func (s *AuthService) Refresh(ctx context.Context, actor Actor, claims *JWTClaims) (*LoginResult, error) {
	user, err := s.Me(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user.Status != models.UserStatusActive {
		return nil, ErrAccountInactive
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	if err := s.JWT.Revoke(ctx, claims); err != nil {
		return nil, err
	}
	return result, nil
}

// 3 Logout 吊销当前令牌
func (s *AuthService) Logout(ctx context.Context, actor Actor, claims *JWTClaims) error {
	if err := s.JWT.Revoke(ctx, claims); err != nil {
		return err
	}
	s.Audit.Record(ctx, actor, AuditLogout, "auth", claims.UserID, nil, true)
	return nil
}

// 4 Me 当前用户信息
func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *AuthService) issue(user *models.User) (*LoginResult, error) {
	token, expiresAt, err := s.JWT.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}
