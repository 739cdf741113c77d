package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"apex-http-service/internal/domain/models"
	"apex-http-service/internal/infrastructure/config"
	"apex-http-service/pkg/utils"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SOPQuery SOP列表查询条件
type SOPQuery struct {
	models.PaginationQuery
	PropertyID   *uint  `form:"property_id"`
	IncidentType string `form:"incident_type"`
	Status       string `form:"status"`
	Search       string `form:"search"`
}

// SOPInput 创建或更新SOP
type SOPInput struct {
	Title             *string          `json:"title"`
	PropertyID        *uint            `json:"property_id"`
	IncidentType      *string          `json:"incident_type"`
	SeverityThreshold *string          `json:"severity_threshold"`
	Status            *string          `json:"status"`
	Summary           *string          `json:"summary"`
	Steps             []models.SOPStep `json:"steps"`
	ContactListID     *uint            `json:"contact_list_id"`
	EffectiveFrom     *time.Time       `json:"effective_from"`
	ReviewedAt        *time.Time       `json:"reviewed_at"`
}

// InterfaceSOPService SOP服务接口
type InterfaceSOPService interface {
	ListSOPs(ctx context.Context, q SOPQuery) ([]models.SOP, int64, error)
	GetSOP(ctx context.Context, id uint) (*models.SOP, error)
	CreateSOP(ctx context.Context, actor Actor, in SOPInput) (*models.SOP, error)
	UpdateSOP(ctx context.Context, actor Actor, id uint, in SOPInput) (*models.SOP, error)
	DeleteSOP(ctx context.Context, actor Actor, id uint) error
	MatchSOPs(ctx context.Context, incident *models.Incident) ([]models.SOP, error)
}

// SOPService 标准作业程序管理
type SOPService struct {
	DB     *gorm.DB
	Config *config.Config
	Audit  InterfaceAuditService
}

// NewSOPService 创建SOP服务
func NewSOPService(db *gorm.DB, cfg *config.Config, audit InterfaceAuditService) InterfaceSOPService {
	return &SOPService{DB: db, Config: cfg, Audit: audit}
}

// 1 ListSOPs 获取SOP列表
func (s *SOPService) ListSOPs(ctx context.Context, q SOPQuery) ([]models.SOP, int64, error) {
	q.Normalize()
	query := s.DB.WithContext(ctx).Model(&models.SOP{})
	if q.PropertyID != nil {
		query = query.Where("property_id = ?", *q.PropertyID)
	}
	if q.IncidentType != "" {
		query = query.Where("incident_type = ?", q.IncidentType)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.Search != "" {
		like := "%" + q.Search + "%"
		query = query.Where("title LIKE ? OR summary LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var sops []models.SOP
	if err := query.Order("updated_at DESC, id DESC").Offset(q.Offset()).Limit(q.PageSize).Find(&sops).Error; err != nil {
		return nil, 0, err
	}
	return sops, total, nil
}

// 2 GetSOP 获取SOP详情
func (s *SOPService) GetSOP(ctx context.Context, id uint) (*models.SOP, error) {
	var sop models.SOP
	if err := s.DB.WithContext(ctx).Preload("ContactList").First(&sop, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sop, nil
}

// 3 CreateSOP 创建SOP，至少包含一个步骤
func (s *SOPService) CreateSOP(ctx context.Context, actor Actor, in SOPInput) (*models.SOP, error) {
	if len(in.Steps) == 0 {
		return nil, fmt.Errorf("%w: at least one step is required", ErrValidation)
	}
	sop := &models.SOP{
		Version:           "1.0",
		Status:            models.SOPStatusDraft,
		SeverityThreshold: models.SeverityLow,
	}
	if err := applySOPInput(sop, in); err != nil {
		return nil, err
	}
	if sop.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	uid := actor.UserID
	sop.CreatedBy, sop.UpdatedBy = &uid, &uid

	if err := s.DB.WithContext(ctx).Create(sop).Error; err != nil {
		return nil, err
	}
	s.Audit.Record(ctx, actor, AuditCreate, "sop", sop.ID, map[string]string{"title": sop.Title}, true)
	return sop, nil
}

// 4 UpdateSOP 更新SOP，步骤变化时提升次版本号
func (s *SOPService) UpdateSOP(ctx context.Context, actor Actor, id uint, in SOPInput) (*models.SOP, error) {
	sop, err := s.GetSOP(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Steps != nil && len(in.Steps) == 0 {
		return nil, fmt.Errorf("%w: at least one step is required", ErrValidation)
	}

	oldSteps := sop.Steps
	if err := applySOPInput(sop, in); err != nil {
		return nil, err
	}
	if sop.Title == "" {
		return nil, fmt.Errorf("%w: title cannot be empty", ErrValidation)
	}
	if in.Steps != nil && !sameSteps(oldSteps, sop.Steps) {
		sop.Version = BumpVersion(sop.Version)
	}
	uid := actor.UserID
	sop.UpdatedBy = &uid

	sop.ContactList = nil
	if err := s.DB.WithContext(ctx).Omit("Property", "ContactList").Save(sop).Error; err != nil {
		return nil, err
	}
	s.Audit.Record(ctx, actor, AuditUpdate, "sop", id, map[string]string{"version": sop.Version}, true)
	return s.GetSOP(ctx, id)
}

// 5 DeleteSOP 删除SOP
func (s *SOPService) DeleteSOP(ctx context.Context, actor Actor, id uint) error {
	result := s.DB.WithContext(ctx).Delete(&models.SOP{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	s.Audit.Record(ctx, actor, AuditDelete, "sop", id, nil, true)
	return nil
}

// 6 MatchSOPs 匹配适用于事件的启用SOP：物业专属优先于全局，类型专属优先于通用
func (s *SOPService) MatchSOPs(ctx context.Context, incident *models.Incident) ([]models.SOP, error) {
	var sops []models.SOP
	err := s.DB.WithContext(ctx).
		Where("status = ?", models.SOPStatusActive).
		Where("property_id = ? OR property_id IS NULL", incident.PropertyID).
		Where("incident_type = ? OR incident_type IS NULL", incident.IncidentType).
		Find(&sops).Error
	if err != nil {
		return nil, err
	}

	rank := models.SeverityRank(incident.Severity)
	matched := sops[:0]
	for _, sop := range sops {
		if models.SeverityRank(sop.SeverityThreshold) <= rank {
			matched = append(matched, sop)
		}
	}

	score := func(sop models.SOP) int {
		n := 0
		if sop.PropertyID != nil {
			n += 2
		}
		if sop.IncidentType != nil {
			n++
		}
		return n
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if si, sj := score(matched[i]), score(matched[j]); si != sj {
			return si > sj
		}
		return matched[i].ID < matched[j].ID
	})
	return matched, nil
}

// NormalizeSteps 清洗步骤并按原顺序重新编号为 1..n
func NormalizeSteps(steps []models.SOPStep) ([]models.SOPStep, error) {
	out := make([]models.SOPStep, 0, len(steps))
	for _, st := range steps {
		st.Instruction = utils.SanitizeString(st.Instruction)
		if st.Instruction == "" {
			return nil, fmt.Errorf("%w: step instruction is required", ErrValidation)
		}
		out = append(out, st)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	for i := range out {
		out[i].Order = i + 1
	}
	return out, nil
}

// BumpVersion 次版本号加一，1.0 -> 1.1；无法解析时从 1.1 开始
func BumpVersion(version string) string {
	parts := strings.SplitN(version, ".", 2)
	major, err := strconv.Atoi(parts[0])
	if err != nil || major < 1 {
		return "1.1"
	}
	minor := 0
	if len(parts) == 2 {
		if minor, err = strconv.Atoi(parts[1]); err != nil {
			minor = 0
		}
	}
	return fmt.Sprintf("%d.%d", major, minor+1)
}

// sameSteps 按内容比较，忽略JSON格式差异
func sameSteps(a, b datatypes.JSON) bool {
	var sa, sb []models.SOPStep
	if json.Unmarshal(a, &sa) != nil || json.Unmarshal(b, &sb) != nil {
		return false
	}
	return reflect.DeepEqual(sa, sb)
}

func applySOPInput(sop *models.SOP, in SOPInput) error {
	setString(&sop.Title, in.Title, utils.SanitizeString)
	setString(&sop.Summary, in.Summary, utils.SanitizeString)
	if in.PropertyID != nil {
		if *in.PropertyID == 0 {
			sop.PropertyID = nil
		} else {
			sop.PropertyID = in.PropertyID
		}
	}
	if in.IncidentType != nil {
		t := strings.ToLower(utils.SanitizeIdentifier(*in.IncidentType))
		if t == "" {
			sop.IncidentType = nil
		} else {
			sop.IncidentType = &t
		}
	}
	if in.SeverityThreshold != nil {
		if models.SeverityRank(*in.SeverityThreshold) == 0 {
			return fmt.Errorf("%w: unknown severity %q", ErrValidation, *in.SeverityThreshold)
		}
		sop.SeverityThreshold = *in.SeverityThreshold
	}
	if in.Status != nil {
		switch *in.Status {
		case models.SOPStatusDraft, models.SOPStatusActive, models.SOPStatusArchived:
			sop.Status = *in.Status
		default:
			return fmt.Errorf("%w: unknown SOP status %q", ErrValidation, *in.Status)
		}
	}
	if in.ContactListID != nil {
		if *in.ContactListID == 0 {
			sop.ContactListID = nil
		} else {
			sop.ContactListID = in.ContactListID
		}
	}
	if in.EffectiveFrom != nil {
		sop.EffectiveFrom = in.EffectiveFrom
	}
	if in.ReviewedAt != nil {
		sop.ReviewedAt = in.ReviewedAt
	}
	if in.Steps != nil {
		steps, err := NormalizeSteps(in.Steps)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(steps)
		if err != nil {
			return err
		}
		sop.Steps = datatypes.JSON(raw)
	}
	return nil
}
