package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"muebles/internal/models"
	"muebles/internal/repositories"
)

// Notifier delivers a notification to an order owner. Delivery failures
// never abort the operation that triggered them.
type Notifier interface {
	Notify(ctx context.Context, n *models.Notification) error
}

const (
	KindOrderCreated  = "order_created"
	KindStatusChanged = "status_changed"
)

var statusMessages = map[models.Status]string{
	models.StatusQuoting:      "Your order is being quoted by our team.",
	models.StatusApproved:     "Your order has been approved and production will start soon.",
	models.StatusInProduction: "Your order is in production.",
	models.StatusDelivered:    "Your order has been delivered successfully.",
	models.StatusCancelled:    "Your order has been cancelled.",
}

// StatusMessage is the owner-facing text for an order reaching status.
func StatusMessage(status models.Status) string {
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return fmt.Sprintf("Your order status has changed to: %s", status)
}

func statusNotification(order *models.Order, change models.StatusChange) *models.Notification {
	return &models.Notification{
		ID:      uuid.New().String(),
		UserID:  order.OwnerID,
		Kind:    KindStatusChanged,
		Subject: fmt.Sprintf("Order %s", change.ToStatus),
		Message: StatusMessage(change.ToStatus),
		Metadata: map[string]string{
			"order_id":        strconv.FormatInt(order.ID, 10),
			"previous_status": string(change.FromStatus),
			"new_status":      string(change.ToStatus),
		},
	}
}

func createdNotification(order *models.Order) *models.Notification {
	return &models.Notification{
		ID:      uuid.New().String(),
		UserID:  order.OwnerID,
		Kind:    KindOrderCreated,
		Subject: "New order created",
		Message: "Your order has been created successfully and is being reviewed by our team.",
		Metadata: map[string]string{
			"order_id": strconv.FormatInt(order.ID, 10),
			"status":   string(order.Status),
		},
	}
}

// StoreNotifier writes notifications straight into the local table. It is
// used when no message broker is configured.
type StoreNotifier struct {
	repo repositories.NotificationRepository
}

func NewStoreNotifier(repo repositories.NotificationRepository) *StoreNotifier {
	return &StoreNotifier{repo: repo}
}

func (n *StoreNotifier) Notify(ctx context.Context, notification *models.Notification) error {
	return errors.Wrap(n.repo.Create(ctx, notification), "store notification")
}

// NotificationService reads a user's notifications.
type NotificationService struct {
	repo repositories.NotificationRepository
}

func NewNotificationService(repo repositories.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

// ForActor lists the caller's latest notifications.
func (s *NotificationService) ForActor(ctx context.Context, actor models.Actor, limit int) ([]models.Notification, error) {
	if actor.ID == 0 {
		return nil, models.ErrUnauthenticated
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByUser(ctx, actor.ID, limit)
}
