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
	Logger "apex-http-service/pkg/logger"
	"apex-http-service/pkg/utils"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IncidentQuery 事件列表查询条件
type IncidentQuery struct {
	models.PaginationQuery
	PropertyID      *uint      `form:"property_id"`
	ZoneID          *uint      `form:"zone_id"`
	Status          string     `form:"status"`
	Severity        string     `form:"severity"`
	Tier            *int       `form:"tier"`
	IncidentType    string     `form:"incident_type"`
	AssignedGuardID *uint      `form:"assigned_guard_id"`
	From            *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To              *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Search          string     `form:"search"`
}

// Witness 目击者
type Witness struct {
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	Statement string `json:"statement,omitempty"`
}

// IncidentInput 创建或更新事件，更新时未提供的字段保持不变
type IncidentInput struct {
	Title               *string                `json:"title"`
	Description         *string                `json:"description"`
	IncidentType        *string                `json:"incident_type"`
	Severity            *string                `json:"severity"`
	Priority            *string                `json:"priority"`
	Source              *string                `json:"source"`
	PropertyID          *uint                  `json:"property_id"`
	ZoneID              *uint                  `json:"zone_id"`
	AlarmID             *uint                  `json:"alarm_id"`
	AccessPointID       *uint                  `json:"access_point_id"`
	CameraID            *string                `json:"camera_id"`
	LocationDescription *string                `json:"location_description"`
	Latitude            *float64               `json:"latitude"`
	Longitude           *float64               `json:"longitude"`
	AIConfidence        *float64               `json:"ai_confidence"`
	DetectionType       *string                `json:"detection_type"`
	DetectedAt          *time.Time             `json:"detected_at"`
	PersonsInvolved     *int                   `json:"persons_involved"`
	VehiclesInvolved    *int                   `json:"vehicles_involved"`
	InjuriesReported    *bool                  `json:"injuries_reported"`
	PoliceNotified      *bool                  `json:"police_notified"`
	PoliceReportNumber  *string                `json:"police_report_number"`
	FireDeptNotified    *bool                  `json:"fire_dept_notified"`
	EMSNotified         *bool                  `json:"ems_notified"`
	PropertyDamage      *bool                  `json:"property_damage"`
	EstimatedLoss       *float64               `json:"estimated_loss"`
	Photos              []string               `json:"photos"`
	Videos              []string               `json:"videos"`
	Witnesses           []Witness              `json:"witnesses"`
	Tags                []string               `json:"tags"`
	Metadata            map[string]interface{} `json:"metadata"`
	ActionsTaken        *string                `json:"actions_taken"`
	ResolutionNotes     *string                `json:"resolution_notes"`
	Notes               *string                `json:"notes"`
	FollowUpRequired    *bool                  `json:"follow_up_required"`
	FollowUpDate        *time.Time             `json:"follow_up_date"`
	ClientNotified      *bool                  `json:"client_notified"`
}

// IncidentStatusInput 状态流转请求
type IncidentStatusInput struct {
	Status          string `json:"status" binding:"required"`
	ResolutionNotes string `json:"resolution_notes"`
	Notes           string `json:"notes"`
}

// EvidenceInput 追加证据
type EvidenceInput struct {
	Type        string `json:"type" binding:"required"`
	URL         string `json:"url" binding:"required"`
	Description string `json:"description"`
}

var evidenceTypes = map[string]bool{"photo": true, "video": true, "audio": true, "document": true}

// InterfaceIncidentService 事件服务接口
type InterfaceIncidentService interface {
	ListIncidents(ctx context.Context, q IncidentQuery) ([]models.Incident, int64, error)
	GetIncident(ctx context.Context, id uint) (*models.Incident, error)
	CreateIncident(ctx context.Context, actor Actor, in IncidentInput) (*models.Incident, error)
	UpdateIncident(ctx context.Context, actor Actor, id uint, in IncidentInput) (*models.Incident, error)
	UpdateStatus(ctx context.Context, actor Actor, id uint, in IncidentStatusInput) (*models.Incident, error)
	AddEvidence(ctx context.Context, actor Actor, id uint, in EvidenceInput) (*models.Incident, error)
	DeleteIncident(ctx context.Context, actor Actor, id uint) error
}

// IncidentService 事件管理
type IncidentService struct {
	DB     *gorm.DB
	Config *config.Config
	Audit  InterfaceAuditService
	Events EventPublisher
	MQTT   InterfaceMQTTService
}

// NewIncidentService 创建事件服务，mqttService 可为空
func NewIncidentService(db *gorm.DB, cfg *config.Config, audit InterfaceAuditService, events EventPublisher, mqttService InterfaceMQTTService) InterfaceIncidentService {
	return &IncidentService{DB: db, Config: cfg, Audit: audit, Events: events, MQTT: mqttService}
}

// 1 ListIncidents 按条件分页查询事件，按上报时间倒序
func (s *IncidentService) ListIncidents(ctx context.Context, q IncidentQuery) ([]models.Incident, int64, error) {
	q.Normalize()
	query := s.DB.WithContext(ctx).Model(&models.Incident{})
	if q.PropertyID != nil {
		query = query.Where("property_id = ?", *q.PropertyID)
	}
	if q.ZoneID != nil {
		query = query.Where("zone_id = ?", *q.ZoneID)
	}
	if q.Status != "" {
		query = query.Where("status IN ?", strings.Split(q.Status, ","))
	}
	if q.Severity != "" {
		query = query.Where("severity IN ?", strings.Split(q.Severity, ","))
	}
	if q.Tier != nil {
		query = query.Where("tier = ?", *q.Tier)
	}
	if q.IncidentType != "" {
		query = query.Where("incident_type = ?", q.IncidentType)
	}
	if q.AssignedGuardID != nil {
		query = query.Where("assigned_guard_id = ?", *q.AssignedGuardID)
	}
	if q.From != nil {
		query = query.Where("reported_at >= ?", *q.From)
	}
	if q.To != nil {
		query = query.Where("reported_at <= ?", *q.To)
	}
	if q.Search != "" {
		like := "%" + q.Search + "%"
		query = query.Where("title LIKE ? OR description LIKE ? OR incident_number LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var incidents []models.Incident
	if err := query.Order("reported_at DESC, id DESC").Offset(q.Offset()).Limit(q.PageSize).Find(&incidents).Error; err != nil {
		return nil, 0, err
	}
	return incidents, total, nil
}

// 2 GetIncident 获取事件详情
func (s *IncidentService) GetIncident(ctx context.Context, id uint) (*models.Incident, error) {
	var incident models.Incident
	err := s.DB.WithContext(ctx).
		Preload("Property").Preload("Zone").Preload("AssignedGuard").
		First(&incident, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &incident, nil
}

// 3 CreateIncident 上报新事件，自动生成编号并分级
func (s *IncidentService) CreateIncident(ctx context.Context, actor Actor, in IncidentInput) (*models.Incident, error) {
	now := time.Now().UTC()
	incident := &models.Incident{
		IncidentNumber: utils.GenerateID("INC"),
		Severity:       models.SeverityMedium,
		Priority:       models.PriorityNormal,
		Status:         models.IncidentReported,
		Source:         models.SourceManual,
		ReportedAt:     now,
	}
	if actor.UserID != 0 {
		uid := actor.UserID
		incident.ReportedByUserID = &uid
		incident.CreatedBy = &uid
		incident.UpdatedBy = &uid
	}
	if in.PropertyID == nil || *in.PropertyID == 0 {
		return nil, fmt.Errorf("%w: property_id is required", ErrValidation)
	}
	if err := applyIncidentInput(incident, in); err != nil {
		return nil, err
	}
	if incident.Title == "" || incident.IncidentType == "" {
		return nil, fmt.Errorf("%w: title and incident_type are required", ErrValidation)
	}
	if err := s.checkLocation(ctx, incident.PropertyID, incident.ZoneID); err != nil {
		return nil, err
	}
	incident.RefreshTier()

	if err := s.DB.WithContext(ctx).Create(incident).Error; err != nil {
		return nil, err
	}

	s.Audit.Record(ctx, actor, AuditCreate, "incident", incident.ID,
		map[string]interface{}{"incident_number": incident.IncidentNumber, "tier": incident.Tier}, true)
	publishEvent(s.Events, EventIncidentCreated, incident)
	s.notifyMQTT(EventIncidentCreated, incident)
	return incident, nil
}

// 4 UpdateIncident 更新事件字段，严重程度、优先级或类型变化时重新分级
func (s *IncidentService) UpdateIncident(ctx context.Context, actor Actor, id uint, in IncidentInput) (*models.Incident, error) {
	incident, err := s.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	if incident.Status == models.IncidentClosed || incident.Status == models.IncidentCancelled {
		return nil, ErrIncidentClosed
	}
	if err := applyIncidentInput(incident, in); err != nil {
		return nil, err
	}
	if incident.Title == "" || incident.IncidentType == "" {
		return nil, fmt.Errorf("%w: title and incident_type cannot be empty", ErrValidation)
	}
	if in.PropertyID != nil || in.ZoneID != nil {
		if err := s.checkLocation(ctx, incident.PropertyID, incident.ZoneID); err != nil {
			return nil, err
		}
	}
	incident.RefreshTier()
	if actor.UserID != 0 {
		uid := actor.UserID
		incident.UpdatedBy = &uid
	}

	if err := s.save(ctx, incident); err != nil {
		return nil, err
	}
	s.Audit.Record(ctx, actor, AuditUpdate, "incident", id, nil, true)

	updated, err := s.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	publishEvent(s.Events, EventIncidentUpdated, updated)
	return updated, nil
}

// 5 UpdateStatus 按状态流转表变更状态
func (s *IncidentService) UpdateStatus(ctx context.Context, actor Actor, id uint, in IncidentStatusInput) (*models.Incident, error) {
	incident, err := s.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	from := incident.Status
	if err := incident.TransitionTo(in.Status, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("%w: %s -> %s", err, from, in.Status)
	}
	if notes := utils.SanitizeString(in.ResolutionNotes); notes != "" {
		incident.ResolutionNotes = notes
	}
	if notes := utils.SanitizeString(in.Notes); notes != "" {
		incident.Notes = appendNote(incident.Notes, notes)
	}
	if actor.UserID != 0 {
		uid := actor.UserID
		incident.UpdatedBy = &uid
	}

	if err := s.save(ctx, incident); err != nil {
		return nil, err
	}
	s.Audit.Record(ctx, actor, AuditStatusChange, "incident", id, map[string]string{"from": from, "to": in.Status}, true)
	publishEvent(s.Events, EventIncidentStatus, incident)
	s.notifyMQTT(EventIncidentStatus, incident)
	return incident, nil
}

// 6 AddEvidence 追加一条证据
func (s *IncidentService) AddEvidence(ctx context.Context, actor Actor, id uint, in EvidenceInput) (*models.Incident, error) {
	evType := strings.ToLower(strings.TrimSpace(in.Type))
	if !evidenceTypes[evType] {
		return nil, fmt.Errorf("%w: evidence type must be photo, video, audio or document", ErrValidation)
	}
	url := utils.SanitizeURL(in.URL)
	if url == "" {
		return nil, fmt.Errorf("%w: evidence url must be an http(s) url", ErrValidation)
	}

	incident, err := s.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}

	var evidence []models.EvidenceItem
	if len(incident.Evidence) > 0 {
		if err := json.Unmarshal(incident.Evidence, &evidence); err != nil {
			return nil, fmt.Errorf("decode evidence: %w", err)
		}
	}
	evidence = append(evidence, models.EvidenceItem{
		Type:        evType,
		URL:         url,
		Description: utils.SanitizeString(in.Description),
		UploadedBy:  actor.UserID,
		UploadedAt:  time.Now().UTC(),
	})
	raw, err := json.Marshal(evidence)
	if err != nil {
		return nil, err
	}
	incident.Evidence = datatypes.JSON(raw)

	if err := s.DB.WithContext(ctx).Model(incident).Update("evidence", incident.Evidence).Error; err != nil {
		return nil, err
	}
	s.Audit.Record(ctx, actor, AuditUpdate, "incident", id, map[string]string{"evidence": evType}, true)
	publishEvent(s.Events, EventIncidentUpdated, incident)
	return incident, nil
}

// 7 DeleteIncident 软删除事件
func (s *IncidentService) DeleteIncident(ctx context.Context, actor Actor, id uint) error {
	result := s.DB.WithContext(ctx).Delete(&models.Incident{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	s.Audit.Record(ctx, actor, AuditDelete, "incident", id, nil, true)
	return nil
}

func (s *IncidentService) save(ctx context.Context, incident *models.Incident) error {
	return s.DB.WithContext(ctx).Omit(clause.Associations).Save(incident).Error
}

// checkLocation 物业必须存在，区域必须属于该物业
func (s *IncidentService) checkLocation(ctx context.Context, propertyID uint, zoneID *uint) error {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.Property{}).Where("id = ?", propertyID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: property %d does not exist", ErrValidation, propertyID)
	}
	if zoneID == nil {
		return nil
	}
	if err := s.DB.WithContext(ctx).Model(&models.Zone{}).Where("id = ? AND property_id = ?", *zoneID, propertyID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: zone %d does not belong to property %d", ErrValidation, *zoneID, propertyID)
	}
	return nil
}

func (s *IncidentService) notifyMQTT(eventType string, incident *models.Incident) {
	if s.MQTT == nil || !s.MQTT.IsConnected() {
		return
	}
	if err := s.MQTT.PublishIncident(eventType, incident); err != nil {
		Logger.Warning("[MQTT] 发布事件 %s 失败: %v", incident.IncidentNumber, err)
	}
}

func appendNote(existing, note string) string {
	stamped := time.Now().UTC().Format(time.RFC3339) + " " + note
	if existing == "" {
		return stamped
	}
	return existing + "\n" + stamped
}

func applyIncidentInput(inc *models.Incident, in IncidentInput) error {
	setString(&inc.Title, in.Title, utils.SanitizeString)
	setString(&inc.Description, in.Description, utils.SanitizeString)
	setString(&inc.IncidentType, in.IncidentType, func(v string) string { return strings.ToLower(utils.SanitizeIdentifier(v)) })
	if in.Severity != nil {
		if models.SeverityRank(*in.Severity) == 0 {
			return fmt.Errorf("%w: unknown severity %q", ErrValidation, *in.Severity)
		}
		inc.Severity = *in.Severity
	}
	if in.Priority != nil {
		if !containsString(models.Priorities, *in.Priority) {
			return fmt.Errorf("%w: unknown priority %q", ErrValidation, *in.Priority)
		}
		inc.Priority = *in.Priority
	}
	if in.Source != nil {
		if !containsString(models.IncidentSources, *in.Source) {
			return fmt.Errorf("%w: unknown source %q", ErrValidation, *in.Source)
		}
		inc.Source = *in.Source
	}
	if in.PropertyID != nil {
		inc.PropertyID = *in.PropertyID
	}
	if in.ZoneID != nil {
		if *in.ZoneID == 0 {
			inc.ZoneID = nil
		} else {
			inc.ZoneID = in.ZoneID
		}
	}
	if in.AlarmID != nil {
		inc.AlarmID = in.AlarmID
	}
	if in.AccessPointID != nil {
		inc.AccessPointID = in.AccessPointID
	}
	setString(&inc.CameraID, in.CameraID, utils.SanitizeIdentifier)
	setString(&inc.LocationDescription, in.LocationDescription, utils.SanitizeString)
	setString(&inc.DetectionType, in.DetectionType, utils.SanitizeIdentifier)
	setString(&inc.PoliceReportNumber, in.PoliceReportNumber, utils.SanitizeIdentifier)
	setString(&inc.ActionsTaken, in.ActionsTaken, utils.SanitizeString)
	setString(&inc.ResolutionNotes, in.ResolutionNotes, utils.SanitizeString)
	setString(&inc.Notes, in.Notes, utils.SanitizeString)
	if in.Latitude != nil {
		inc.Latitude = in.Latitude
	}
	if in.Longitude != nil {
		inc.Longitude = in.Longitude
	}
	if in.AIConfidence != nil {
		if *in.AIConfidence < 0 || *in.AIConfidence > 1 {
			return fmt.Errorf("%w: ai_confidence must be between 0 and 1", ErrValidation)
		}
		inc.AIConfidence = in.AIConfidence
	}
	if in.DetectedAt != nil {
		inc.DetectedAt = in.DetectedAt
	}
	if in.PersonsInvolved != nil {
		inc.PersonsInvolved = *in.PersonsInvolved
	}
	if in.VehiclesInvolved != nil {
		inc.VehiclesInvolved = *in.VehiclesInvolved
	}
	if in.InjuriesReported != nil {
		inc.InjuriesReported = *in.InjuriesReported
	}
	if in.PoliceNotified != nil {
		inc.PoliceNotified = *in.PoliceNotified
	}
	if in.FireDeptNotified != nil {
		inc.FireDeptNotified = *in.FireDeptNotified
	}
	if in.EMSNotified != nil {
		inc.EMSNotified = *in.EMSNotified
	}
	if in.PropertyDamage != nil {
		inc.PropertyDamage = *in.PropertyDamage
	}
	if in.EstimatedLoss != nil {
		inc.EstimatedLoss = in.EstimatedLoss
	}
	if in.FollowUpRequired != nil {
		inc.FollowUpRequired = *in.FollowUpRequired
	}
	if in.FollowUpDate != nil {
		inc.FollowUpDate = in.FollowUpDate
	}
	if in.ClientNotified != nil && *in.ClientNotified != inc.ClientNotified {
		inc.ClientNotified = *in.ClientNotified
		if inc.ClientNotified {
			now := time.Now().UTC()
			inc.ClientNotifiedAt = &now
		} else {
			inc.ClientNotifiedAt = nil
		}
	}

	var err error
	if in.Photos != nil {
		if inc.Photos, err = encodeURLs(in.Photos); err != nil {
			return err
		}
	}
	if in.Videos != nil {
		if inc.Videos, err = encodeURLs(in.Videos); err != nil {
			return err
		}
	}
	if in.Tags != nil {
		tags := make([]string, 0, len(in.Tags))
		for _, t := range in.Tags {
			if t = strings.ToLower(utils.SanitizeString(t)); t != "" {
				tags = append(tags, t)
			}
		}
		if inc.Tags, err = encodeJSON(tags); err != nil {
			return err
		}
	}
	if in.Witnesses != nil {
		witnesses := make([]Witness, 0, len(in.Witnesses))
		for _, w := range in.Witnesses {
			w.Name = utils.SanitizeString(w.Name)
			w.Phone = utils.SanitizePhone(w.Phone)
			w.Email = utils.SanitizeEmail(w.Email)
			w.Statement = utils.SanitizeString(w.Statement)
			if w.Name != "" {
				witnesses = append(witnesses, w)
			}
		}
		if inc.Witnesses, err = encodeJSON(witnesses); err != nil {
			return err
		}
	}
	if in.Metadata != nil {
		if inc.Metadata, err = encodeJSON(utils.SanitizeMap(in.Metadata)); err != nil {
			return err
		}
	}
	return nil
}

func encodeURLs(urls []string) (datatypes.JSON, error) {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		clean := utils.SanitizeURL(u)
		if clean == "" {
			return nil, fmt.Errorf("%w: invalid url %q", ErrValidation, u)
		}
		out = append(out, clean)
	}
	return encodeJSON(out)
}

func encodeJSON(v interface{}) (datatypes.JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
