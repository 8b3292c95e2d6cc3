package repositories

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"muebles/internal/models"
)

// GORMOrderRepository is the local SQL fallback for orders.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

func withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Lines", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") }).
		Preload("History", func(tx *gorm.DB) *gorm.DB { return tx.Order("changed_at ASC, id ASC") })
}

// Create inserts the order together with its lines.
func (r *GORMOrderRepository) Create(ctx context.Context, _ string, order *models.Order) (*models.Order, error) {
	if order.Status == "" {
		order.Status = models.StatusNew
	}
	for i := range order.Lines {
		order.Lines[i].ID = 0
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, errors.Wrap(err, "failed to create order")
	}
	return r.GetByID(ctx, "", order.ID)
}

// GetByID loads an order with its lines and history.
func (r *GORMOrderRepository) GetByID(ctx context.Context, _ string, id int64) (*models.Order, error) {
	var order models.Order
	if err := withDetails(r.db.WithContext(ctx)).First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(models.ErrNotFound, "order with ID %d", id)
		}
		return nil, errors.Wrapf(err, "failed to get order by ID %d", id)
	}
	return &order, nil
}

// List returns one page of orders, newest first.
func (r *GORMOrderRepository) List(ctx context.Context, _ string, filter models.OrderFilter) (*models.OrderPage, error) {
	filter = filter.Normalize()
	q := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.OwnerID != nil {
		q = q.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, errors.Wrap(err, "failed to count orders")
	}

	var orders []models.Order
	err := q.Preload("Lines", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") }).
		Order("created_at DESC, id DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list orders")
	}
	return &models.OrderPage{
		Orders:     orders,
		Pagination: models.NewPagination(filter.Page, filter.Limit, int(total)),
	}, nil
}

// UpdateStatus moves the order and appends the history entry atomically.
// The write only applies while the stored status still equals
// change.FromStatus; otherwise a *models.TransitionError describing the
// current status is returned and nothing is recorded.
func (r *GORMOrderRepository) UpdateStatus(ctx context.Context, _ string, id int64, change models.StatusChange, adminNotes string, deliveryDate *time.Time) (*models.Order, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": change.ToStatus}
		if adminNotes != "" {
			updates["admin_notes"] = adminNotes
		}
		if deliveryDate != nil {
			updates["delivery_date"] = *deliveryDate
		}
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", id, change.FromStatus).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return staleStatus(tx, id, change.ToStatus)
		}
		change.ID = 0
		change.OrderID = id
		return tx.Create(&change).Error
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrInvalidTransition) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "failed to update status for order %d", id)
	}
	return r.GetByID(ctx, "", id)
}

// staleStatus explains why a conditional status write matched no row.
func staleStatus(tx *gorm.DB, id int64, to models.Status) error {
	var current models.Order
	err := tx.Select("id", "status").First(&current, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrapf(models.ErrNotFound, "order with ID %d", id)
	}
	if err != nil {
		return err
	}
	return &models.TransitionError{From: current.Status, To: to, Allowed: current.Status.AllowedTransitions()}
}

// UpdateQuote prices the referenced lines and stores the supplied total.
// Lines that do not belong to the order are left untouched.
func (r *GORMOrderRepository) UpdateQuote(ctx context.Context, _ string, id int64, quote models.Quote) (*models.Order, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Order{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return errors.Wrapf(models.ErrNotFound, "order with ID %d", id)
		}
		for _, lq := range quote.Lines {
			err := tx.Model(&models.LineItem{}).
				Where("id = ? AND order_id = ?", lq.LineID, id).
				Update("unit_price", lq.UnitPrice).Error
			if err != nil {
				return err
			}
		}
		return tx.Model(&models.Order{}).Where("id = ?", id).Update("estimated_total", quote.EstimatedTotal).Error
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "failed to update quote for order %d", id)
	}
	return r.GetByID(ctx, "", id)
}

// CreateLine appends a line to an existing order.
func (r *GORMOrderRepository) CreateLine(ctx context.Context, _ string, orderID int64, line models.LineItem) (*models.LineItem, error) {
	line.ID = 0
	line.OrderID = orderID
	if err := r.db.WithContext(ctx).Create(&line).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to create line for order %d", orderID)
	}
	return &line, nil
}
