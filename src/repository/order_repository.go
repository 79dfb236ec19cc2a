package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"quantsystem/src/model"
)

// OrderRepository handles read/write operations for paper orders and their status logs.
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a repository on the given handle.
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *OrderRepository) WithDB(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateWithAutoLog inserts the order and its first status log.
// The given order will be updated with the generated ID and timestamps.
func (r *OrderRepository) CreateWithAutoLog(
	ctx context.Context,
	order *model.Order,
	reason string,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":   "OrderRepository",
		"op":     "CreateWithAutoLog",
		"symbol": order.Symbol,
		"side":   order.Side,
		"qty":    order.Quantity,
		"status": order.Status,
	}).Debug("Creating new order")

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			logger.WithFields(map[string]interface{}{
				"repo": "OrderRepository",
				"op":   "CreateWithAutoLog",
			}).WithError(err).Error("Failed to create order")
			return err
		}

		if err := tx.Create(model.NewOrderLog(order, reason, time.Now().UTC())).Error; err != nil {
			logger.WithError(err).Error("Failed to create order log on create")
			return err
		}

		logger.WithFields(map[string]interface{}{
			"repo":     "OrderRepository",
			"op":       "CreateWithAutoLog",
			"order_id": order.ID,
			"status":   order.Status,
		}).Info("Order created")

		return nil
	})
}

// SaveWithAutoLog persists every column of an existing order and appends a
// status log carrying its new state.
func (r *OrderRepository) SaveWithAutoLog(
	ctx context.Context,
	order *model.Order,
	reason string,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":     "OrderRepository",
		"op":       "SaveWithAutoLog",
		"order_id": order.ID,
		"status":   order.Status,
		"filled":   order.FilledQuantity,
	}).Debug("Saving order")

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Logs").Save(order).Error; err != nil {
			logger.WithError(err).Error("Failed to save order inside transaction")
			return err
		}

		if err := tx.Create(model.NewOrderLog(order, reason, time.Now().UTC())).Error; err != nil {
			logger.WithError(err).Error("Failed to create order log on save")
			return err
		}

		return nil
	})
}

// UpdateStatusWithAutoLog changes only the status and records the transition.
func (r *OrderRepository) UpdateStatusWithAutoLog(
	ctx context.Context,
	orderID uint,
	newStatus string,
	reason string,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":      "OrderRepository",
		"op":        "UpdateStatusWithAutoLog",
		"order_id":  orderID,
		"newStatus": newStatus,
		"reason":    reason,
	}).Info("Updating order status with automatic log")

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.Order

		if err := tx.First(&order, orderID).Error; err != nil {
			logger.WithError(err).Error("Failed to load order inside transaction")
			return err
		}

		if err := tx.
			Model(&model.Order{}).
			Where("id = ?", orderID).
			Update("status", newStatus).Error; err != nil {
			logger.WithError(err).Error("Failed to update order status inside transaction")
			return err
		}

		order.Status = newStatus
		if err := tx.Create(model.NewOrderLog(&order, reason, time.Now().UTC())).Error; err != nil {
			logger.WithError(err).Error("Failed to create order log on status update")
			return err
		}

		return nil
	})
}

// FindByID fetches a single order with its logs.
// Returns (nil, nil) if the order is not found.
func (r *OrderRepository) FindByID(
	ctx context.Context,
	id uint,
) (*model.Order, error) {

	var order model.Order

	err := r.db.WithContext(ctx).
		Preload("Logs", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&order, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo": "OrderRepository",
				"op":   "FindByID",
				"id":   id,
			}).Info("Order not found")

			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "OrderRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch order by ID")

		return nil, err
	}

	return &order, nil
}

// FindByExternalID fetches an order by the id the broker assigned.
// Returns (nil, nil) if the order is not found.
func (r *OrderRepository) FindByExternalID(
	ctx context.Context,
	externalID string,
) (*model.Order, error) {

	var order model.Order

	err := r.db.WithContext(ctx).
		Where("external_order_id = ?", externalID).
		First(&order).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":        "OrderRepository",
			"op":          "FindByExternalID",
			"external_id": externalID,
		}).WithError(err).Error("Failed to fetch order by external ID")

		return nil, err
	}

	return &order, nil
}

// FindOpen returns NEW and PARTIALLY_FILLED orders, oldest first.
func (r *OrderRepository) FindOpen(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order

	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{model.OrderStatusNew, model.OrderStatusPartiallyFilled}).
		Order("id ASC").
		Find(&orders).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "OrderRepository",
			"op":   "FindOpen",
		}).WithError(err).Error("Failed to fetch open orders")

		return nil, err
	}

	return orders, nil
}

// FindLatest returns the latest orders ordered from newest to oldest.
func (r *OrderRepository) FindLatest(
	ctx context.Context,
	limit int,
) ([]model.Order, error) {

	if limit <= 0 {
		limit = 20
	}

	var orders []model.Order

	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&orders).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "OrderRepository",
			"op":    "FindLatest",
			"limit": limit,
		}).WithError(err).Error("Failed to fetch latest orders")

		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "OrderRepository",
		"op":          "FindLatest",
		"limit":       limit,
		"rows_return": len(orders),
	}).Debug("Latest orders fetched")

	return orders, nil
}

// OrderSearchOptions filters Search. Nil pointers and zero limits are ignored.
type OrderSearchOptions struct {
	Symbol        *string
	Status        *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// Search lists orders newest first.
func (r *OrderRepository) Search(ctx context.Context, options OrderSearchOptions) ([]model.Order, error) {
	query := r.db.WithContext(ctx).Model(&model.Order{})

	if options.Symbol != nil {
		query = query.Where("symbol = ?", *options.Symbol)
	}
	if options.Status != nil {
		query = query.Where("status = ?", *options.Status)
	}
	if options.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *options.CreatedAfter)
	}
	if options.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *options.CreatedBefore)
	}

	query = query.Order("created_at DESC, id DESC")
	if options.Limit > 0 {
		query = query.Limit(options.Limit)
	}
	if options.Offset > 0 {
		query = query.Offset(options.Offset)
	}

	var orders []model.Order
	if err := query.Find(&orders).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "OrderRepository",
			"op":   "Search",
		}).WithError(err).Error("Failed to search orders")
		return nil, err
	}

	return orders, nil
}
