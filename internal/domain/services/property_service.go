package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"apex-http-service/internal/domain/models"
	"apex-http-service/internal/infrastructure/config"
	"apex-http-service/pkg/utils"

	"gorm.io/gorm"
)

// PropertyQuery 物业列表查询条件
type PropertyQuery struct {
	models.PaginationQuery
	Status string `form:"status"`
	Search string `form:"search"`
}

// PropertyInput 创建或更新物业
type PropertyInput struct {
	Name          *string  `json:"name"`
	Code          *string  `json:"code"`
	AddressLine1  *string  `json:"address_line1"`
	AddressLine2  *string  `json:"address_line2"`
	City          *string  `json:"city"`
	State         *string  `json:"state"`
	PostalCode    *string  `json:"postal_code"`
	Country       *string  `json:"country"`
	ClientName    *string  `json:"client_name"`
	ClientContact *string  `json:"client_contact"`
	ClientPhone   *string  `json:"client_phone"`
	ClientEmail   *string  `json:"client_email"`
	Timezone      *string  `json:"timezone"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	Status        *string  `json:"status"`
	Notes         *string  `json:"notes"`
}

// ZoneInput 创建区域
type ZoneInput struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	RiskLevel   string `json:"risk_level"`
	Status      string `json:"status"`
}

// InterfacePropertyService 物业服务接口
type InterfacePropertyService interface {
	ListProperties(ctx context.Context, q PropertyQuery) ([]models.Property, int64, error)
	GetProperty(ctx context.Context, id uint) (*models.Property, error)
	CreateProperty(ctx context.Context, actor Actor, in PropertyInput) (*models.Property, error)
	UpdateProperty(ctx context.Context, actor Actor, id uint, in PropertyInput) (*models.Property, error)
	DeleteProperty(ctx context.Context, actor Actor, id uint) error
	ListZones(ctx context.Context, propertyID uint) ([]models.Zone, error)
	CreateZone(ctx context.Context, actor Actor, propertyID uint, in ZoneInput) (*models.Zone, error)
	DeleteZone(ctx context.Context, actor Actor, propertyID, zoneID uint) error
}

// PropertyService 物业与区域管理
type PropertyService struct {
	DB     *gorm.DB
	Config *config.Config
	Audit  InterfaceAuditService
}

// NewPropertyService 创建物业服务
func NewPropertyService(db *gorm.DB, cfg *config.Config, audit InterfaceAuditService) InterfacePropertyService {
	return &PropertyService{DB: db, Config: cfg, Audit: audit}
}

// 1 ListProperties 获取物业列表
func (s *PropertyService) ListProperties(ctx context.Context, q PropertyQuery) ([]models.Property, int64, error) {
	q.Normalize()
	query := s.DB.WithContext(ctx).Model(&models.Property{})
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.Search != "" {
		like := "%" + q.Search + "%"
		query = query.Where("name LIKE ? OR code LIKE ? OR city LIKE ? OR client_name LIKE ?", like, like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var properties []models.Property
	if err := query.Order("name ASC").Offset(q.Offset()).Limit(q.PageSize).Find(&properties).Error; err != nil {
		return nil, 0, err
	}
	return properties, total, nil
}

// 2 GetProperty 获取物业详情，包含区域
func (s *PropertyService) GetProperty(ctx context.Context, id uint) (*models.Property, error) {
	var property models.Property
	if err := s.DB.WithContext(ctx).Preload("Zones").First(&property, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &property, nil
}

// 3 CreateProperty 创建物业，编码唯一
func (s *PropertyService) CreateProperty(ctx context.Context, actor Actor, in PropertyInput) (*models.Property, error) {
	property := &models.Property{Status: "active", Timezone: "UTC"}
	applyPropertyInput(property, in)
	if property.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if property.Code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrValidation)
	}
	if err := s.ensureCodeUnique(ctx, 0, property.Code); err != nil {
		return nil, err
	}

	if err := s.DB.WithContext(ctx).Create(property).Error; err != nil {
		return nil, err
	}
	s.Audit.Record(ctx, actor, AuditCreate, "property", property.ID, map[string]string{"code": property.Code}, true)
	return property, nil
}

// 4 UpdateProperty 更新物业
func (s *PropertyService) UpdateProperty(ctx context.Context, actor Actor, id uint, in PropertyInput) (*models.Property, error) {
	property, err := s.GetProperty(ctx, id)
	if err != nil {
		return nil, err
	}
	oldCode := property.Code
	applyPropertyInput(property, in)
	if property.Name == "" || property.Code == "" {
		return nil, fmt.Errorf("%w: name and code cannot be empty", ErrValidation)
	}
	if property.Code != oldCode {
		if err := s.ensureCodeUnique(ctx, id, property.Code); err != nil {
			return nil, err
		}
	}

	if err := s.DB.WithContext(ctx).Omit("Zones").Save(property).Error; err != nil {
		return nil, err
	}
	s.Audit.Record(ctx, actor, AuditUpdate, "property", id, nil, true)
	return s.GetProperty(ctx, id)
}

// 5 DeleteProperty 删除物业，存在未结束事件时拒绝
func (s *PropertyService) DeleteProperty(ctx context.Context, actor Actor, id uint) error {
	property, err := s.GetProperty(ctx, id)
	if err != nil {
		return err
	}

	var open int64
	if err := s.DB.WithContext(ctx).Model(&models.Incident{}).
		Where("property_id = ? AND status IN ?", id, models.OpenIncidentStatuses()).
		Count(&open).Error; err != nil {
		return err
	}
	if open > 0 {
		return fmt.Errorf("%w: property has %d open incidents", ErrConflict, open)
	}

	if err := s.DB.WithContext(ctx).Delete(property).Error; err != nil {
		return err
	}
	s.Audit.Record(ctx, actor, AuditDelete, "property", id, map[string]string{"code": property.Code}, true)
	return nil
}

// 6 ListZones 获取物业的区域
func (s *PropertyService) ListZones(ctx context.Context, propertyID uint) ([]models.Zone, error) {
	if _, err := s.GetProperty(ctx, propertyID); err != nil {
		return nil, err
	}
	var zones []models.Zone
	if err := s.DB.WithContext(ctx).Where("property_id = ?", propertyID).Order("name ASC").Find(&zones).Error; err != nil {
		return nil, err
	}
	return zones, nil
}

// 7 CreateZone 为物业添加区域
func (s *PropertyService) CreateZone(ctx context.Context, actor Actor, propertyID uint, in ZoneInput) (*models.Zone, error) {
	if _, err := s.GetProperty(ctx, propertyID); err != nil {
		return nil, err
	}
	zone := &models.Zone{
		PropertyID:  propertyID,
		Name:        utils.SanitizeString(in.Name),
		Description: utils.SanitizeString(in.Description),
		RiskLevel:   in.RiskLevel,
		Status:      in.Status,
	}
	if zone.Name == "" {
		return nil, fmt.Errorf("%w: zone name is required", ErrValidation)
	}
	if zone.RiskLevel == "" {
		zone.RiskLevel = "low"
	}
	switch zone.RiskLevel {
	case "low", "medium", "high":
	default:
		return nil, fmt.Errorf("%w: unknown risk level %q", ErrValidation, zone.RiskLevel)
	}
	if zone.Status == "" {
		zone.Status = "active"
	}

	if err := s.DB.WithContext(ctx).Create(zone).Error; err != nil {
		return nil, err
	}
	s.Audit.Record(ctx, actor, AuditCreate, "zone", zone.ID, map[string]uint{"property_id": propertyID}, true)
	return zone, nil
}

// 8 DeleteZone 删除区域
func (s *PropertyService) DeleteZone(ctx context.Context, actor Actor, propertyID, zoneID uint) error {
	result := s.DB.WithContext(ctx).Where("property_id = ?", propertyID).Delete(&models.Zone{}, zoneID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	s.Audit.Record(ctx, actor, AuditDelete, "zone", zoneID, map[string]uint{"property_id": propertyID}, true)
	return nil
}

func (s *PropertyService) ensureCodeUnique(ctx context.Context, id uint, code string) error {
	var count int64
	query := s.DB.WithContext(ctx).Unscoped().Model(&models.Property{}).Where("code = ?", code)
	if id != 0 {
		query = query.Where("id <> ?", id)
	}
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: property code %s already exists", ErrConflict, code)
	}
	return nil
}

func applyPropertyInput(p *models.Property, in PropertyInput) {
	setString(&p.Name, in.Name, utils.SanitizeString)
	setString(&p.Code, in.Code, func(v string) string { return strings.ToUpper(utils.SanitizeIdentifier(v)) })
	setString(&p.AddressLine1, in.AddressLine1, utils.SanitizeString)
	setString(&p.AddressLine2, in.AddressLine2, utils.SanitizeString)
	setString(&p.City, in.City, utils.SanitizeString)
	setString(&p.State, in.State, utils.SanitizeString)
	setString(&p.PostalCode, in.PostalCode, utils.SanitizeString)
	setString(&p.Country, in.Country, utils.SanitizeString)
	setString(&p.ClientName, in.ClientName, utils.SanitizeString)
	setString(&p.ClientContact, in.ClientContact, utils.SanitizeString)
	setString(&p.ClientPhone, in.ClientPhone, utils.SanitizePhone)
	setString(&p.ClientEmail, in.ClientEmail, utils.SanitizeEmail)
	setString(&p.Timezone, in.Timezone, strings.TrimSpace)
	setString(&p.Status, in.Status, strings.TrimSpace)
	setString(&p.Notes, in.Notes, utils.SanitizeString)
	if in.Latitude != nil {
		p.Latitude = in.Latitude
	}
	if in.Longitude != nil {
		p.Longitude = in.Longitude
	}
}

// setString 仅在提供了新值时覆盖
func setString(dst *string, src *string, clean func(string) string) {
	if src == nil {
		return
	}
	*dst = clean(*src)
}
