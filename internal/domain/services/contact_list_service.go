package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"apex-http-service/internal/domain/models"
	"apex-http-service/internal/infrastructure/config"
	"apex-http-service/pkg/utils"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ContactListQuery 联系人列表查询条件
type ContactListQuery struct {
	models.PaginationQuery
	PropertyID *uint  `form:"property_id"`
	Type       string `form:"type"`
}

// ContactListInput 创建或更新联系人列表
type ContactListInput struct {
	Name        *string          `json:"name"`
	PropertyID  *uint            `json:"property_id"`
	Type        *string          `json:"type"`
	Description *string          `json:"description"`
	Contacts    []models.Contact `json:"contacts"`
	IsActive    *bool            `json:"is_active"`
}

// InterfaceContactListService 联系人列表服务接口
type InterfaceContactListService interface {
	ListContactLists(ctx context.Context, q ContactListQuery) ([]models.ContactList, int64, error)
	GetContactList(ctx context.Context, id uint) (*models.ContactList, error)
	CreateContactList(ctx context.Context, actor Actor, in ContactListInput) (*models.ContactList, error)
	UpdateContactList(ctx context.Context, actor Actor, id uint, in ContactListInput) (*models.ContactList, error)
	DeleteContactList(ctx context.Context, actor Actor, id uint) error
}

// ContactListService 联系人列表管理
type ContactListService struct {
	DB     *gorm.DB
	Config *config.Config
	Audit  InterfaceAuditService
}

// NewContactListService 创建联系人列表服务
func NewContactListService(db *gorm.DB, cfg *config.Config, audit InterfaceAuditService) InterfaceContactListService {
	return &ContactListService{DB: db, Config: cfg, Audit: audit}
}

// 1 ListContactLists 获取联系人列表
func (s *ContactListService) ListContactLists(ctx context.Context, q ContactListQuery) ([]models.ContactList, int64, error) {
	q.Normalize()
	query := s.DB.WithContext(ctx).Model(&models.ContactList{})
	if q.PropertyID != nil {
		query = query.Where("property_id = ?", *q.PropertyID)
	}
	if q.Type != "" {
		query = query.Where("type = ?", q.Type)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var lists []models.ContactList
	if err := query.Order("name ASC").Offset(q.Offset()).Limit(q.PageSize).Find(&lists).Error; err != nil {
		return nil, 0, err
	}
	return lists, total, nil
}

// 2 GetContactList 获取联系人列表详情
func (s *ContactListService) GetContactList(ctx context.Context, id uint) (*models.ContactList, error) {
	var list models.ContactList
	if err := s.DB.WithContext(ctx).First(&list, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &list, nil
}

// 3 CreateContactList 创建联系人列表
func (s *ContactListService) CreateContactList(ctx context.Context, actor Actor, in ContactListInput) (*models.ContactList, error) {
	list := &models.ContactList{Type: models.ContactListEmergency, IsActive: true, Contacts: datatypes.JSON("[]")}
	if err := applyContactListInput(list, in); err != nil {
		return nil, err
	}
	if list.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}

	if err := s.DB.WithContext(ctx).Create(list).Error; err != nil {
		return nil, err
	}
	s.Audit.Record(ctx, actor, AuditCreate, "contact_list", list.ID, map[string]string{"name": list.Name}, true)
	return list, nil
}

// 4 UpdateContactList 更新联系人列表
func (s *ContactListService) UpdateContactList(ctx context.Context, actor Actor, id uint, in ContactListInput) (*models.ContactList, error) {
	list, err := s.GetContactList(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyContactListInput(list, in); err != nil {
		return nil, err
	}
	if list.Name == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", ErrValidation)
	}

	if err := s.DB.WithContext(ctx).Omit("Property").Save(list).Error; err != nil {
		return nil, err
	}
	s.Audit.Record(ctx, actor, AuditUpdate, "contact_list", id, nil, true)
	return list, nil
}

// 5 DeleteContactList 删除联系人列表
func (s *ContactListService) DeleteContactList(ctx context.Context, actor Actor, id uint) error {
	result := s.DB.WithContext(ctx).Delete(&models.ContactList{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	s.Audit.Record(ctx, actor, AuditDelete, "contact_list", id, nil, true)
	return nil
}

// NormalizeContacts 清洗联系人，每人需有姓名以及电话或邮箱，按优先级排序
func NormalizeContacts(contacts []models.Contact) ([]models.Contact, error) {
	out := make([]models.Contact, 0, len(contacts))
	for i, c := range contacts {
		c.Name = utils.SanitizeString(c.Name)
		c.Role = utils.SanitizeString(c.Role)
		c.Phone = utils.SanitizePhone(c.Phone)
		c.Email = utils.SanitizeEmail(c.Email)
		c.Notes = utils.SanitizeString(c.Notes)
		if c.Name == "" {
			return nil, fmt.Errorf("%w: contact %d needs a name", ErrValidation, i+1)
		}
		if c.Phone == "" && c.Email == "" {
			return nil, fmt.Errorf("%w: contact %q needs a phone or email", ErrValidation, c.Name)
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func applyContactListInput(list *models.ContactList, in ContactListInput) error {
	setString(&list.Name, in.Name, utils.SanitizeString)
	setString(&list.Description, in.Description, utils.SanitizeString)
	if in.PropertyID != nil {
		if *in.PropertyID == 0 {
			list.PropertyID = nil
		} else {
			list.PropertyID = in.PropertyID
		}
	}
	if in.Type != nil {
		if !models.IsValidContactListType(*in.Type) {
			return fmt.Errorf("%w: unknown contact list type %q", ErrValidation, *in.Type)
		}
		list.Type = *in.Type
	}
	if in.IsActive != nil {
		list.IsActive = *in.IsActive
	}
	if in.Contacts != nil {
		contacts, err := NormalizeContacts(in.Contacts)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(contacts)
		if err != nil {
			return err
		}
		list.Contacts = datatypes.JSON(raw)
	}
	return nil
}
