package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"apex-http-service/internal/domain/models"
	"apex-http-service/internal/infrastructure/config"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// maxExportRows 单次导出上限
const maxExportRows = 10000

// ReportQuery 报表查询条件
type ReportQuery struct {
	From       *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To         *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	PropertyID *uint      `form:"property_id"`
}

// PropertyCount 按物业统计
type PropertyCount struct {
	PropertyID   uint   `json:"property_id"`
	PropertyName string `json:"property_name"`
	Count        int64  `json:"count"`
}

// IncidentSummary 事件汇总
type IncidentSummary struct {
	Total                    int64            `json:"total"`
	Open                     int64            `json:"open"`
	ByStatus                 map[string]int64 `json:"by_status"`
	BySeverity               map[string]int64 `json:"by_severity"`
	ByTier                   map[string]int64 `json:"by_tier"`
	ByType                   map[string]int64 `json:"by_type"`
	ByProperty               []PropertyCount  `json:"by_property"`
	AvgResponseTimeSeconds   *float64         `json:"avg_response_time_seconds"`
	AvgResolutionTimeSeconds *float64         `json:"avg_resolution_time_seconds"`
	From                     *time.Time       `json:"from,omitempty"`
	To                       *time.Time       `json:"to,omitempty"`
	GeneratedAt              time.Time        `json:"generated_at"`
}

// InterfaceReportService 报表服务接口
type InterfaceReportService interface {
	IncidentSummary(ctx context.Context, q ReportQuery) (*IncidentSummary, error)
	ExportIncidents(ctx context.Context, q ReportQuery) ([]byte, string, error)
}

// ReportService 事件统计与导出
type ReportService struct {
	DB     *gorm.DB
	Config *config.Config
}

// NewReportService 创建报表服务
func NewReportService(db *gorm.DB, cfg *config.Config) InterfaceReportService {
	return &ReportService{DB: db, Config: cfg}
}

type groupCount struct {
	Key   string
	Count int64
}

func (s *ReportService) scoped(ctx context.Context, q ReportQuery) *gorm.DB {
	query := s.DB.WithContext(ctx).Model(&models.Incident{})
	if q.From != nil {
		query = query.Where("incidents.reported_at >= ?", *q.From)
	}
	if q.To != nil {
		query = query.Where("incidents.reported_at <= ?", *q.To)
	}
	if q.PropertyID != nil {
		query = query.Where("incidents.property_id = ?", *q.PropertyID)
	}
	return query
}

func (s *ReportService) countBy(ctx context.Context, q ReportQuery, column string) (map[string]int64, error) {
	var rows []groupCount
	if err := s.scoped(ctx, q).
		Select(column + " AS `key`, COUNT(*) AS count").
		Group(column).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Count
	}
	return out, nil
}

// 1 IncidentSummary 统计事件数量及平均响应、处置时间
func (s *ReportService) IncidentSummary(ctx context.Context, q ReportQuery) (*IncidentSummary, error) {
	summary := &IncidentSummary{From: q.From, To: q.To, GeneratedAt: time.Now().UTC()}

	if err := s.scoped(ctx, q).Count(&summary.Total).Error; err != nil {
		return nil, err
	}
	if err := s.scoped(ctx, q).Where("status IN ?", models.OpenIncidentStatuses()).Count(&summary.Open).Error; err != nil {
		return nil, err
	}

	var err error
	if summary.ByStatus, err = s.countBy(ctx, q, "status"); err != nil {
		return nil, err
	}
	if summary.BySeverity, err = s.countBy(ctx, q, "severity"); err != nil {
		return nil, err
	}
	if summary.ByTier, err = s.countBy(ctx, q, "CAST(tier AS CHAR)"); err != nil {
		return nil, err
	}
	if summary.ByType, err = s.countBy(ctx, q, "incident_type"); err != nil {
		return nil, err
	}

	summary.ByProperty = []PropertyCount{}
	if err := s.scoped(ctx, q).
		Select("incidents.property_id AS property_id, properties.name AS property_name, COUNT(*) AS count").
		Joins("LEFT JOIN properties ON properties.id = incidents.property_id").
		Group("incidents.property_id, properties.name").
		Order("count DESC").
		Scan(&summary.ByProperty).Error; err != nil {
		return nil, err
	}

	var avg struct {
		Response   *float64
		Resolution *float64
	}
	if err := s.scoped(ctx, q).
		Select("AVG(response_time_seconds) AS response, AVG(resolution_time_seconds) AS resolution").
		Scan(&avg).Error; err != nil {
		return nil, err
	}
	summary.AvgResponseTimeSeconds = avg.Response
	summary.AvgResolutionTimeSeconds = avg.Resolution
	return summary, nil
}

var exportHeaders = []string{
	"Incident Number", "Title", "Type", "Severity", "Priority", "Tier", "Status", "Source",
	"Property", "Location", "Reported At", "Acknowledged At", "Dispatched At", "Resolved At", "Closed At",
	"Response Time (s)", "Resolution Time (s)", "Police Notified", "Injuries Reported", "Resolution Notes",
}

// 2 ExportIncidents 导出事件为 XLSX，返回文件内容和文件名
func (s *ReportService) ExportIncidents(ctx context.Context, q ReportQuery) ([]byte, string, error) {
	var incidents []models.Incident
	if err := s.scoped(ctx, q).Preload("Property").
		Order("reported_at DESC").Limit(maxExportRows).
		Find(&incidents).Error; err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Incidents"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, "", err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, "", err
	}
	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, "", err
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(exportHeaders), 1)
	if err := f.SetCellStyle(sheet, "A1", lastHeader, headerStyle); err != nil {
		return nil, "", err
	}

	for r, inc := range incidents {
		propertyName := ""
		if inc.Property != nil {
			propertyName = inc.Property.Name
		}
		row := []interface{}{
			inc.IncidentNumber, inc.Title, inc.IncidentType, inc.Severity, inc.Priority, inc.Tier, inc.Status, inc.Source,
			propertyName, inc.LocationDescription, formatTime(&inc.ReportedAt), formatTime(inc.AcknowledgedAt),
			formatTime(inc.DispatchedAt), formatTime(inc.ResolvedAt), formatTime(inc.ClosedAt),
			intOrEmpty(inc.ResponseTimeSeconds), intOrEmpty(inc.ResolutionTimeSeconds),
			inc.PoliceNotified, inc.InjuriesReported, inc.ResolutionNotes,
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, "", err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("incidents-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	return buf.Bytes(), filename, nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func intOrEmpty(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
