package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/fieldserve/workflow-service/internal/config"
	"github.com/fieldserve/workflow-service/internal/domain"
	"github.com/fieldserve/workflow-service/internal/events"
	"github.com/fieldserve/workflow-service/internal/persistence"
	"github.com/fieldserve/workflow-service/internal/repository"
	apperrors "github.com/fieldserve/workflow-service/pkg/util/errorutil"
)

// NotificationService owns the notification read-state lifecycle and the
// best-effort outbound side channels.
type NotificationService struct {
	notifications repository.NotificationRepository
	cache         *persistence.Redis
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	cfg           config.SideChannelConfig
}

// NewNotificationService creates the service.
func NewNotificationService(notifications repository.NotificationRepository, cache *persistence.Redis, dispatcher events.Dispatcher, logger *zap.Logger, cfg config.SideChannelConfig) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		cache:         cache,
		dispatcher:    dispatcher,
		logger:        logger,
		cfg:           cfg,
	}
}

// ListForUser returns the user's notifications, optionally by status.
func (n *NotificationService) ListForUser(ctx context.Context, userID string, status *domain.NotificationStatus, limit, offset int) ([]domain.Notification, error) {
	return n.notifications.ListByUser(ctx, userID, repository.NotificationFilter{
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
}

// MarkRead acknowledges a notification. The lifecycle only moves forward;
// re-reading an archived notification is rejected.
func (n *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	err := n.notifications.MarkRead(ctx, notificationID, userID, time.Now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("notification", map[string]any{"id": notificationID})
		}
		if errors.Is(err, repository.ErrReadStateBackward) {
			return apperrors.NewConflict("notification read-state cannot move backward", nil)
		}
		return apperrors.MapError(err)
	}
	if n.cache != nil {
		if cacheErr := n.cache.DecrUnread(ctx, userID); cacheErr != nil {
			n.logger.Debug("unread counter decrement failed", zap.Error(cacheErr))
		}
	}
	return nil
}

// Archive moves a notification to its final lifecycle state.
func (n *NotificationService) Archive(ctx context.Context, userID, notificationID string) error {
	err := n.notifications.Archive(ctx, notificationID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("notification", map[string]any{"id": notificationID})
		}
		if errors.Is(err, repository.ErrReadStateBackward) {
			return apperrors.NewConflict("notification already archived", nil)
		}
		return apperrors.MapError(err)
	}
	return nil
}

// UnreadCount reads the redis counter first and falls back to the store.
func (n *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if n.cache != nil {
		if count, err := n.cache.GetUnread(ctx, userID); err == nil && count > 0 {
			return count, nil
		}
	}
	return n.notifications.CountUnread(ctx, userID)
}

// RegisterHandlers subscribes the side-channel stubs to workflow events.
// These run detached from the transition outcome and never fail it.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleStatusChanged)
	n.dispatcher.Subscribe(events.EventSlaStatusChanged, n.handleSlaChanged)
	n.dispatcher.Subscribe(events.EventTicketEscalated, n.handleEscalated)
}

func (n *NotificationService) handleStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketStatusChanged", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendEmailStub(event)
	n.sendWebhookStub(event)
	return nil
}

func (n *NotificationService) handleSlaChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("SlaStatusChanged", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendWebhookStub(event)
	return nil
}

func (n *NotificationService) handleEscalated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketEscalated", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.sendEmailStub(event)
	n.sendWebhookStub(event)
	return nil
}

func (n *NotificationService) sendEmailStub(event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookStub(event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
