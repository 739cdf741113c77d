package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"apex-http-service/internal/domain/models"
	"apex-http-service/internal/infrastructure/config"
	Logger "apex-http-service/pkg/logger"
	"apex-http-service/pkg/utils"

	"gorm.io/gorm"
)

// UserQuery 用户列表查询条件
type UserQuery struct {
	models.PaginationQuery
	Role   string `form:"role"`
	Status string `form:"status"`
	Search string `form:"search"`
}

// CreateUserInput 创建用户请求
type CreateUserInput struct {
	Email     string `json:"email" binding:"required"`
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Role      string `json:"role" binding:"required"`
	Status    string `json:"status"`
}

// UpdateUserInput 更新用户请求，未提供的字段保持不变
type UpdateUserInput struct {
	Email     *string `json:"email"`
	Username  *string `json:"username"`
	Password  *string `json:"password"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	Role      *string `json:"role"`
	Status    *string `json:"status"`
}

// InterfaceUserService 用户服务接口
type InterfaceUserService interface {
	ListUsers(ctx context.Context, q UserQuery) ([]models.User, int64, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	CreateUser(ctx context.Context, actor Actor, in CreateUserInput) (*models.User, error)
	UpdateUser(ctx context.Context, actor Actor, id uint, in UpdateUserInput) (*models.User, error)
	DeleteUser(ctx context.Context, actor Actor, id uint) error
	EnsureAdminExists(ctx context.Context) (bool, error)
}

// UserTokenRevoker 按用户吊销已签发的令牌
type UserTokenRevoker interface {
	RevokeUser(ctx context.Context, userID uint) error
}

// UserService 提供用户相关的服务
type UserService struct {
	DB     *gorm.DB
	Config *config.Config
	Audit  InterfaceAuditService
	Tokens UserTokenRevoker
}

// NewUserService 创建一个新的用户服务，tokens 为空时不吊销令牌
func NewUserService(db *gorm.DB, cfg *config.Config, audit InterfaceAuditService, tokens UserTokenRevoker) InterfaceUserService {
	return &UserService{DB: db, Config: cfg, Audit: audit, Tokens: tokens}
}

// 1 ListUsers 获取用户列表，支持分页和搜索
func (s *UserService) ListUsers(ctx context.Context, q UserQuery) ([]models.User, int64, error) {
	q.Normalize()
	query := s.DB.WithContext(ctx).Model(&models.User{})

	if q.Role != "" {
		query = query.Where("role = ?", q.Role)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.Search != "" {
		like := "%" + q.Search + "%"
		query = query.Where("username LIKE ? OR email LIKE ? OR first_name LIKE ? OR last_name LIKE ?", like, like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	if err := query.Order("id ASC").Offset(q.Offset()).Limit(q.PageSize).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// 2 GetUserByID 根据ID获取用户
func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// 3 CreateUser 创建新用户
func (s *UserService) CreateUser(ctx context.Context, actor Actor, in CreateUserInput) (*models.User, error) {
	email := utils.SanitizeEmail(in.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: a valid email is required", ErrValidation)
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrValidation)
	}
	if !models.IsValidRole(in.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, in.Role)
	}
	if in.Role == models.RoleAdminSuper && actor.Role != models.RoleAdminSuper {
		return nil, fmt.Errorf("%w: only super administrators can grant %s", ErrValidation, models.RoleAdminSuper)
	}
	status := in.Status
	if status == "" {
		status = models.UserStatusActive
	}
	if !isValidUserStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	if err := s.ensureUnique(ctx, 0, email, username); err != nil {
		return nil, err
	}

	hashed, err := utils.HashPassword(in.Password)
	if err != nil {
		if errors.Is(err, utils.ErrPasswordTooShort) {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return nil, fmt.Errorf("密码加密失败: %w", err)
	}

	user := &models.User{
		Email:     email,
		Username:  username,
		Password:  hashed,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     utils.SanitizePhone(in.Phone),
		Role:      in.Role,
		Status:    status,
	}
	if err := s.DB.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}

	s.Audit.Record(ctx, actor, AuditCreate, "user", user.ID, map[string]string{"email": user.Email, "role": user.Role}, true)
	return user, nil
}

// 4 UpdateUser 更新用户信息
func (s *UserService) UpdateUser(ctx context.Context, actor Actor, id uint, in UpdateUserInput) (*models.User, error) {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ensureCanManage(actor, user); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	email, username := user.Email, user.Username
	if in.Email != nil {
		email = utils.SanitizeEmail(*in.Email)
		if email == "" {
			return nil, fmt.Errorf("%w: a valid email is required", ErrValidation)
		}
		updates["email"] = email
	}
	if in.Username != nil {
		username = strings.TrimSpace(*in.Username)
		if username == "" {
			return nil, fmt.Errorf("%w: username is required", ErrValidation)
		}
		updates["username"] = username
	}
	if in.Email != nil || in.Username != nil {
		if err := s.ensureUnique(ctx, id, email, username); err != nil {
			return nil, err
		}
	}
	if in.Password != nil {
		hashed, err := utils.HashPassword(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		updates["password"] = hashed
	}
	if in.FirstName != nil {
		updates["first_name"] = *in.FirstName
	}
	if in.LastName != nil {
		updates["last_name"] = *in.LastName
	}
	if in.Phone != nil {
		updates["phone"] = utils.SanitizePhone(*in.Phone)
	}
	if in.Role != nil && *in.Role != user.Role {
		if !models.IsValidRole(*in.Role) {
			return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, *in.Role)
		}
		if *in.Role == models.RoleAdminSuper && actor.Role != models.RoleAdminSuper {
			return nil, fmt.Errorf("%w: only super administrators can grant %s", ErrForbidden, models.RoleAdminSuper)
		}
		if user.Role == models.RoleAdminSuper {
			if err := s.ensureAnotherSuperAdmin(ctx, user.ID); err != nil {
				return nil, err
			}
		}
		updates["role"] = *in.Role
	}
	if in.Status != nil {
		if !isValidUserStatus(*in.Status) {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *in.Status)
		}
		if *in.Status != models.UserStatusActive && user.Role == models.RoleAdminSuper {
			if err := s.ensureAnotherSuperAdmin(ctx, user.ID); err != nil {
				return nil, err
			}
		}
		updates["status"] = *in.Status
	}

	statusChanged := in.Status != nil && *in.Status != user.Status
	if len(updates) > 0 {
		if err := s.DB.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
			return nil, err
		}
		// 角色、状态或密码变化后旧令牌作废
		_, roleChanged := updates["role"]
		_, passwordChanged := updates["password"]
		if roleChanged || passwordChanged || statusChanged {
			s.revokeTokens(ctx, id)
		}
		delete(updates, "password")
		s.Audit.Record(ctx, actor, AuditUpdate, "user", id, updates, true)
	}

	// 重新获取更新后的用户信息
	return s.GetUserByID(ctx, id)
}

// 5 DeleteUser 删除用户，不能删除自己和最后一个超级管理员
func (s *UserService) DeleteUser(ctx context.Context, actor Actor, id uint) error {
	if actor.UserID == id {
		return ErrSelfDelete
	}
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if err := ensureCanManage(actor, user); err != nil {
		return err
	}
	if user.Role == models.RoleAdminSuper {
		if err := s.ensureAnotherSuperAdmin(ctx, id); err != nil {
			return err
		}
	}

	if err := s.DB.WithContext(ctx).Delete(user).Error; err != nil {
		return err
	}
	s.revokeTokens(ctx, id)
	s.Audit.Record(ctx, actor, AuditDelete, "user", id, map[string]string{"email": user.Email}, true)
	return nil
}

// 6 EnsureAdminExists 确保系统中有超级管理员账户
func (s *UserService) EnsureAdminExists(ctx context.Context) (bool, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("role = ?", models.RoleAdminSuper).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	password := s.Config.DefaultAdminPassword
	if password == "" {
		password = utils.GenerateToken(12)
		Logger.Warning("未配置 DEFAULT_ADMIN_PASSWORD，已为 %s 生成随机密码: %s", s.Config.DefaultAdminEmail, password)
	}
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("生成密码哈希失败: %w", err)
	}

	admin := models.User{
		Email:     strings.ToLower(s.Config.DefaultAdminEmail),
		Username:  "admin",
		Password:  hashed,
		FirstName: "System",
		LastName:  "Administrator",
		Role:      models.RoleAdminSuper,
		Status:    models.UserStatusActive,
	}
	if err := s.DB.WithContext(ctx).Create(&admin).Error; err != nil {
		return false, fmt.Errorf("创建默认管理员失败: %w", err)
	}
	Logger.Info("已创建默认管理员账户: %s", admin.Email)
	return true, nil
}

// revokeTokens 吊销失败只记录日志，不回滚已提交的修改
func (s *UserService) revokeTokens(ctx context.Context, userID uint) {
	if s.Tokens == nil {
		return
	}
	if err := s.Tokens.RevokeUser(ctx, userID); err != nil {
		Logger.Warning("吊销用户 %d 的令牌失败: %v", userID, err)
	}
}

// ensureCanManage 超级管理员账号只能由超级管理员修改或删除
func ensureCanManage(actor Actor, target *models.User) error {
	if target.Role == models.RoleAdminSuper && actor.Role != models.RoleAdminSuper {
		return fmt.Errorf("%w: only super administrators can modify %s accounts", ErrForbidden, models.RoleAdminSuper)
	}
	return nil
}

func (s *UserService) ensureUnique(ctx context.Context, id uint, email, username string) error {
	var count int64
	query := s.DB.WithContext(ctx).Unscoped().Model(&models.User{}).Where("(email = ? OR username = ?)", email, username)
	if id != 0 {
		query = query.Where("id <> ?", id)
	}
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: email or username already in use", ErrConflict)
	}
	return nil
}

func (s *UserService) ensureAnotherSuperAdmin(ctx context.Context, excludeID uint) error {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("role = ? AND status = ? AND id <> ?", models.RoleAdminSuper, models.UserStatusActive, excludeID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrLastAdmin
	}
	return nil
}

func isValidUserStatus(status string) bool {
	switch status {
	case models.UserStatusActive, models.UserStatusInactive, models.UserStatusLocked:
		return true
	}
	return false
}
