package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"apex-http-service/internal/domain/models"
	"apex-http-service/internal/infrastructure/config"
	"apex-http-service/pkg/utils"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GuardQuery 警卫列表查询条件
type GuardQuery struct {
	models.PaginationQuery
	Status     string `form:"status"`
	PropertyID *uint  `form:"property_id"`
	Search     string `form:"search"`
}

// GuardInput 创建或更新警卫
type GuardInput struct {
	UserID            *uint      `json:"user_id"`
	EmployeeID        *string    `json:"employee_id"`
	FirstName         *string    `json:"first_name"`
	LastName          *string    `json:"last_name"`
	Phone             *string    `json:"phone"`
	Email             *string    `json:"email"`
	LicenseNumber     *string    `json:"license_number"`
	LicenseExpiry     *time.Time `json:"license_expiry"`
	Status            *string    `json:"status"`
	CurrentPropertyID *uint      `json:"current_property_id"`
	Certifications    []string   `json:"certifications"`
	Notes             *string    `json:"notes"`
}

// GuardStatusInput 警卫状态及位置上报
type GuardStatusInput struct {
	Status     string   `json:"status" binding:"required"`
	PropertyID *uint    `json:"property_id"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
}

// InterfaceGuardService 警卫服务接口
type InterfaceGuardService interface {
	ListGuards(ctx context.Context, q GuardQuery) ([]models.Guard, int64, error)
	GetGuard(ctx context.Context, id uint) (*models.Guard, error)
	CreateGuard(ctx context.Context, actor Actor, in GuardInput) (*models.Guard, error)
	UpdateGuard(ctx context.Context, actor Actor, id uint, in GuardInput) (*models.Guard, error)
	DeleteGuard(ctx context.Context, actor Actor, id uint) error
	UpdateStatus(ctx context.Context, actor Actor, id uint, in GuardStatusInput) (*models.Guard, error)
	ListAvailable(ctx context.Context, propertyID *uint) ([]models.Guard, error)
}

// GuardService 警卫管理
type GuardService struct {
	DB     *gorm.DB
	Config *config.Config
	Audit  InterfaceAuditService
	Events EventPublisher
}

// NewGuardService 创建警卫服务
func NewGuardService(db *gorm.DB, cfg *config.Config, audit InterfaceAuditService, events EventPublisher) InterfaceGuardService {
	return &GuardService{DB: db, Config: cfg, Audit: audit, Events: events}
}

// 1 ListGuards 获取警卫列表
func (s *GuardService) ListGuards(ctx context.Context, q GuardQuery) ([]models.Guard, int64, error) {
	q.Normalize()
	query := s.DB.WithContext(ctx).Model(&models.Guard{})
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.PropertyID != nil {
		query = query.Where("current_property_id = ?", *q.PropertyID)
	}
	if q.Search != "" {
		like := "%" + q.Search + "%"
		query = query.Where("first_name LIKE ? OR last_name LIKE ? OR employee_id LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var guards []models.Guard
	if err := query.Order("last_name ASC, first_name ASC").Offset(q.Offset()).Limit(q.PageSize).Find(&guards).Error; err != nil {
		return nil, 0, err
	}
	return guards, total, nil
}

// 2 GetGuard 获取警卫详情
func (s *GuardService) GetGuard(ctx context.Context, id uint) (*models.Guard, error) {
	var guard models.Guard
	if err := s.DB.WithContext(ctx).Preload("CurrentProperty").First(&guard, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &guard, nil
}

// 3 CreateGuard 创建警卫，工号唯一
func (s *GuardService) CreateGuard(ctx context.Context, actor Actor, in GuardInput) (*models.Guard, error) {
	guard := &models.Guard{Status: models.GuardStatusOffDuty}
	if err := applyGuardInput(guard, in); err != nil {
		return nil, err
	}
	if guard.EmployeeID == "" || guard.FirstName == "" {
		return nil, fmt.Errorf("%w: employee_id and first_name are required", ErrValidation)
	}
	if err := s.ensureEmployeeIDUnique(ctx, 0, guard.EmployeeID); err != nil {
		return nil, err
	}

	if err := s.DB.WithContext(ctx).Create(guard).Error; err != nil {
		return nil, err
	}
	s.Audit.Record(ctx, actor, AuditCreate, "guard", guard.ID, map[string]string{"employee_id": guard.EmployeeID}, true)
	return guard, nil
}

// 4 UpdateGuard 更新警卫资料
func (s *GuardService) UpdateGuard(ctx context.Context, actor Actor, id uint, in GuardInput) (*models.Guard, error) {
	guard, err := s.GetGuard(ctx, id)
	if err != nil {
		return nil, err
	}
	oldEmployeeID, oldStatus := guard.EmployeeID, guard.Status
	if err := applyGuardInput(guard, in); err != nil {
		return nil, err
	}
	if guard.Status != oldStatus {
		if err := s.ensureManualStatusChange(ctx, guard.ID, oldStatus, guard.Status); err != nil {
			return nil, err
		}
	}
	if guard.EmployeeID != oldEmployeeID {
		if err := s.ensureEmployeeIDUnique(ctx, id, guard.EmployeeID); err != nil {
			return nil, err
		}
	}

	guard.CurrentProperty = nil
	if err := s.DB.WithContext(ctx).Omit("User", "CurrentProperty").Save(guard).Error; err != nil {
		return nil, err
	}
	s.Audit.Record(ctx, actor, AuditUpdate, "guard", id, nil, true)
	return s.GetGuard(ctx, id)
}

// 5 DeleteGuard 删除警卫，执行派遣任务中的警卫不能删除
func (s *GuardService) DeleteGuard(ctx context.Context, actor Actor, id uint) error {
	guard, err := s.GetGuard(ctx, id)
	if err != nil {
		return err
	}
	if guard.Status == models.GuardStatusDispatched {
		return fmt.Errorf("%w: guard is currently dispatched", ErrConflict)
	}
	if err := s.DB.WithContext(ctx).Delete(guard).Error; err != nil {
		return err
	}
	s.Audit.Record(ctx, actor, AuditDelete, "guard", id, nil, true)
	return nil
}

// 6 UpdateStatus 更新警卫值班状态和位置
func (s *GuardService) UpdateStatus(ctx context.Context, actor Actor, id uint, in GuardStatusInput) (*models.Guard, error) {
	if !models.IsValidGuardStatus(in.Status) {
		return nil, fmt.Errorf("%w: unknown guard status %q", ErrValidation, in.Status)
	}
	guard, err := s.GetGuard(ctx, id)
	if err != nil {
		return nil, err
	}
	// 警卫账号只能上报自己的状态
	if actor.Role == models.RoleGuard && (guard.UserID == nil || *guard.UserID != actor.UserID) {
		return nil, fmt.Errorf("%w: guards can only report their own status", ErrForbidden)
	}
	if in.Status != guard.Status {
		if err := s.ensureManualStatusChange(ctx, guard.ID, guard.Status, in.Status); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	updates := map[string]interface{}{"status": in.Status, "last_seen_at": now}
	if in.PropertyID != nil {
		updates["current_property_id"] = *in.PropertyID
	}
	if in.Latitude != nil && in.Longitude != nil {
		updates["last_latitude"] = *in.Latitude
		updates["last_longitude"] = *in.Longitude
	}
	// 以读取到的状态为条件更新，避免覆盖并发派遣写入的状态
	res := s.DB.WithContext(ctx).Model(&models.Guard{}).Where("id = ? AND status = ?", guard.ID, guard.Status).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: guard status changed concurrently", ErrConflict)
	}

	s.Audit.Record(ctx, actor, AuditStatusChange, "guard", id, map[string]string{"from": guard.Status, "to": in.Status}, true)
	updated, err := s.GetGuard(ctx, id)
	if err != nil {
		return nil, err
	}
	publishEvent(s.Events, EventGuardStatus, updated)
	return updated, nil
}

// 7 ListAvailable 在岗可派遣的警卫
func (s *GuardService) ListAvailable(ctx context.Context, propertyID *uint) ([]models.Guard, error) {
	query := s.DB.WithContext(ctx).Where("status = ?", models.GuardStatusOnDuty)
	if propertyID != nil {
		query = query.Where("current_property_id = ?", *propertyID)
	}
	var guards []models.Guard
	if err := query.Order("last_seen_at DESC").Find(&guards).Error; err != nil {
		return nil, err
	}
	return guards, nil
}

// ensureManualStatusChange dispatched 状态只由派遣服务设置和解除
func (s *GuardService) ensureManualStatusChange(ctx context.Context, id uint, from, to string) error {
	if to == models.GuardStatusDispatched {
		return fmt.Errorf("%w: guards become dispatched only through a dispatch", ErrConflict)
	}
	if from != models.GuardStatusDispatched {
		return nil
	}
	var active int64
	if err := s.DB.WithContext(ctx).Model(&models.Dispatch{}).
		Where("guard_id = ? AND status NOT IN ?", id, []string{models.DispatchCompleted, models.DispatchCancelled}).
		Count(&active).Error; err != nil {
		return err
	}
	if active > 0 {
		return fmt.Errorf("%w: guard has %d active dispatch(es)", ErrConflict, active)
	}
	return nil
}

func (s *GuardService) ensureEmployeeIDUnique(ctx context.Context, id uint, employeeID string) error {
	var count int64
	query := s.DB.WithContext(ctx).Unscoped().Model(&models.Guard{}).Where("employee_id = ?", employeeID)
	if id != 0 {
		query = query.Where("id <> ?", id)
	}
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: employee id %s already exists", ErrConflict, employeeID)
	}
	return nil
}

func applyGuardInput(g *models.Guard, in GuardInput) error {
	if in.UserID != nil {
		g.UserID = in.UserID
	}
	setString(&g.EmployeeID, in.EmployeeID, func(v string) string { return strings.ToUpper(utils.SanitizeIdentifier(v)) })
	setString(&g.FirstName, in.FirstName, utils.SanitizeString)
	setString(&g.LastName, in.LastName, utils.SanitizeString)
	setString(&g.Phone, in.Phone, utils.SanitizePhone)
	setString(&g.Email, in.Email, utils.SanitizeEmail)
	setString(&g.LicenseNumber, in.LicenseNumber, utils.SanitizeIdentifier)
	setString(&g.Notes, in.Notes, utils.SanitizeString)
	if in.LicenseExpiry != nil {
		g.LicenseExpiry = in.LicenseExpiry
	}
	if in.CurrentPropertyID != nil {
		g.CurrentPropertyID = in.CurrentPropertyID
	}
	if in.Status != nil {
		if !models.IsValidGuardStatus(*in.Status) {
			return fmt.Errorf("%w: unknown guard status %q", ErrValidation, *in.Status)
		}
		g.Status = *in.Status
	}
	if in.Certifications != nil {
		certs := make([]string, 0, len(in.Certifications))
		for _, c := range in.Certifications {
			if c = utils.SanitizeString(c); c != "" {
				certs = append(certs, c)
			}
		}
		raw, err := json.Marshal(certs)
		if err != nil {
			return err
		}
		g.Certifications = datatypes.JSON(raw)
	}
	return nil
}
