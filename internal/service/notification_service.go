package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/hostel-dispatch/internal/config"
	"github.com/spec-kit/hostel-dispatch/internal/domain"
	"github.com/spec-kit/hostel-dispatch/internal/events"
)

// Notification is the message handed to the delivery sink.
type Notification struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role,omitempty"`
	TicketID  string `json:"ticket_id"`
	EventType string `json:"event_type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
}

// NotificationSink delivers notifications. Delivery itself (email, SMS,
// in-app) happens downstream of the sink.
type NotificationSink interface {
	Send(ctx context.Context, n Notification) error
}

// RedisSink publishes notifications as JSON on a Redis channel.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink builds the sink.
func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

// Send publishes n.
func (s *RedisSink) Send(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return s.client.Publish(ctx, s.channel, data).Err()
}

// AdminDirectory lists the administrators copied on escalations.
type AdminDirectory interface {
	ListActiveByRole(ctx context.Context, role domain.UserRole) ([]domain.User, error)
}

// NotificationService turns domain events into notifications.
type NotificationService struct {
	dispatcher events.Dispatcher
	sink       NotificationSink
	directory  AdminDirectory
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NotificationDependencies bundles what the notification service needs. A nil
// Sink only logs; a nil Directory skips the admin copies.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	Sink       NotificationSink
	Directory  AdminDirectory
	Logger     *zap.Logger
	Config     config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		sink:       deps.Sink,
		directory:  deps.Directory,
		logger:     logger,
		cfg:        deps.Config,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketEscalated, n.handleTicketEscalated)
	n.dispatcher.Subscribe(events.EventEscalationResolved, n.handleEscalationResolved)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok || payload.RequesterID == "" || !payload.NewStatus.IndicatesCompletion() {
		return nil
	}
	if id := event.Actor.UserID; id != nil && *id == payload.RequesterID {
		return nil
	}
	return n.send(ctx, Notification{
		UserID:    payload.RequesterID,
		Role:      string(domain.RoleStudent),
		TicketID:  event.TicketID,
		EventType: string(event.Type),
		Title:     fmt.Sprintf("Ticket %s", strings.ToLower(string(payload.NewStatus))),
		Message:   payload.Comment,
	})
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketAssigned", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return nil
	}
	return n.send(ctx, Notification{
		UserID:    payload.StaffID,
		Role:      string(domain.RoleStaff),
		TicketID:  event.TicketID,
		EventType: string(event.Type),
		Title:     "New ticket assigned",
		Message:   fmt.Sprintf("Ticket %s has been assigned to you", event.TicketID),
	})
}

// handleTicketEscalated notifies the new holder, the previous holder, every
// active admin and the requester. Each user is notified once.
func (n *NotificationService) handleTicketEscalated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketEscalated", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	payload, ok := event.Payload.(events.TicketEscalatedPayload)
	if !ok {
		return nil
	}

	base := Notification{
		TicketID:  event.TicketID,
		EventType: string(event.Type),
		Message:   payload.Reason,
	}
	notified := make(map[string]bool)
	var errs []error
	deliver := func(userID, role, title string) {
		if userID == "" || notified[userID] {
			return
		}
		notified[userID] = true
		msg := base
		msg.UserID = userID
		msg.Role = role
		msg.Title = title
		if err := n.send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}

	deliver(payload.EscalatedTo, string(domain.RoleStaff), fmt.Sprintf("Ticket escalated to %s", payload.LevelName))
	if payload.EscalatedFrom != nil {
		deliver(*payload.EscalatedFrom, string(domain.RoleStaff), fmt.Sprintf("Your ticket was escalated to %s", payload.LevelName))
	}
	for _, admin := range n.activeAdmins(ctx, event.TicketID) {
		deliver(admin.ID, string(domain.RoleAdmin), fmt.Sprintf("Ticket escalated to level %d (%s)", int(payload.Level), payload.LevelName))
	}
	deliver(payload.RequesterID, string(domain.RoleStudent), "Your ticket has been escalated")
	return errors.Join(errs...)
}

func (n *NotificationService) activeAdmins(ctx context.Context, ticketID string) []domain.User {
	if n.directory == nil {
		return nil
	}
	admins, err := n.directory.ListActiveByRole(ctx, domain.RoleAdmin)
	if err != nil {
		n.logger.Warn("unable to list admins for escalation notice",
			zap.String("ticket_id", ticketID), zap.Error(err))
		return nil
	}
	return admins
}

func (n *NotificationService) handleEscalationResolved(ctx context.Context, event events.Event) error {
	n.logger.Info("EscalationResolved", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) send(ctx context.Context, notification Notification) error {
	if !n.cfg.Enabled || n.sink == nil {
		n.logger.Debug("notification sink disabled",
			zap.String("ticket_id", notification.TicketID),
			zap.String("event_type", notification.EventType))
		return nil
	}
	if err := n.sink.Send(ctx, notification); err != nil {
		return fmt.Errorf("send %s notification to %s: %w", notification.EventType, notification.UserID, err)
	}
	return nil
}
