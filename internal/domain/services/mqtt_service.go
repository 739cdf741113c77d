package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"apex-http-service/internal/domain/models"
	"apex-http-service/internal/infrastructure/config"
	Logger "apex-http-service/pkg/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// InterfaceMQTTService 定义向警卫终端推送消息的接口
type InterfaceMQTTService interface {
	Connect() error
	Disconnect()
	IsConnected() bool
	PublishDispatch(dispatch *models.Dispatch, incident *models.Incident) error
	PublishIncident(eventType string, incident *models.Incident) error
}

// MQTTMessage MQTT消息基础结构
type MQTTMessage struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// DispatchNotification 派遣通知
type DispatchNotification struct {
	DispatchID     uint   `json:"dispatch_id"`
	DispatchNumber string `json:"dispatch_number"`
	IncidentID     uint   `json:"incident_id"`
	IncidentNumber string `json:"incident_number"`
	Title          string `json:"title"`
	Severity       string `json:"severity"`
	Tier           int    `json:"tier"`
	Priority       string `json:"priority"`
	Location       string `json:"location,omitempty"`
	Notes          string `json:"notes,omitempty"`
	ETAMinutes     *int   `json:"eta_minutes,omitempty"`
}

// MQTTService 基于 paho 的发布服务
type MQTTService struct {
	Config *config.Config
	Client mqtt.Client

	publishMu sync.Mutex
}

// NewMQTTService 创建MQTT服务
func NewMQTTService(cfg *config.Config) InterfaceMQTTService {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTBrokerURL)
	// 使用唯一的客户端ID，避免同一服务多实例冲突
	opts.SetClientID(fmt.Sprintf("%s-%s", cfg.MQTTClientID, uuid.NewString()[:8]))
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(true)
	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		Logger.Warning("[MQTT] 连接丢失: %v", err)
	})
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		Logger.Info("[MQTT] 成功连接到 %s", cfg.MQTTBrokerURL)
	})

	return NewMQTTServiceWithClient(cfg, mqtt.NewClient(opts))
}

// NewMQTTServiceWithClient 使用已有客户端
func NewMQTTServiceWithClient(cfg *config.Config, client mqtt.Client) InterfaceMQTTService {
	return &MQTTService{Config: cfg, Client: client}
}

// Connect 连接到MQTT服务器
func (s *MQTTService) Connect() error {
	if s.Client.IsConnected() {
		return nil
	}
	token := s.Client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("[MQTT] 连接 %s 超时", s.Config.MQTTBrokerURL)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("[MQTT] 连接失败: %w", err)
	}
	return nil
}

// Disconnect 断开与MQTT服务器的连接
func (s *MQTTService) Disconnect() {
	if s.Client != nil && s.Client.IsConnected() {
		s.Client.Disconnect(250)
	}
}

// IsConnected 连接状态
func (s *MQTTService) IsConnected() bool {
	return s.Client != nil && s.Client.IsConnected()
}

// DispatchTopic 警卫派遣主题
func (s *MQTTService) DispatchTopic(guardID uint) string {
	return fmt.Sprintf("%s/guards/%d/dispatch", s.Config.MQTTTopicPrefix, guardID)
}

// IncidentTopic 事件主题
func (s *MQTTService) IncidentTopic(incidentID uint) string {
	return fmt.Sprintf("%s/incidents/%d", s.Config.MQTTTopicPrefix, incidentID)
}

// PublishDispatch 通知被派遣的警卫，同时发布事件更新
func (s *MQTTService) PublishDispatch(dispatch *models.Dispatch, incident *models.Incident) error {
	note := DispatchNotification{
		DispatchID:     dispatch.ID,
		DispatchNumber: dispatch.DispatchNumber,
		IncidentID:     incident.ID,
		IncidentNumber: incident.IncidentNumber,
		Title:          incident.Title,
		Severity:       incident.Severity,
		Tier:           incident.Tier,
		Priority:       dispatch.Priority,
		Location:       incident.LocationDescription,
		Notes:          dispatch.Notes,
		ETAMinutes:     dispatch.ETAMinutes,
	}
	if err := s.publish(s.DispatchTopic(dispatch.GuardID), EventDispatchCreated, note); err != nil {
		return err
	}
	return s.publish(s.IncidentTopic(incident.ID), EventIncidentStatus, incident)
}

// PublishIncident 发布事件更新
func (s *MQTTService) PublishIncident(eventType string, incident *models.Incident) error {
	return s.publish(s.IncidentTopic(incident.ID), eventType, incident)
}

func (s *MQTTService) publish(topic, msgType string, payload interface{}) error {
	if !s.IsConnected() {
		return fmt.Errorf("[MQTT] 客户端未连接")
	}

	data, err := json.Marshal(MQTTMessage{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	token := s.Client.Publish(topic, byte(s.Config.MQTTQoS), false, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("[MQTT] 发布到 %s 超时", topic)
	}
	return token.Error()
}
