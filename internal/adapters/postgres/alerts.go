package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"gorm.io/gorm/clause"
)

// AlertRepository implementation

func inventoryAlertFromModel(m *InventoryAlertModel) *core.InventoryAlert {
	return &core.InventoryAlert{
		ID:               m.ID,
		RestaurantID:     m.RestaurantID,
		BranchID:         m.BranchID,
		StockItemID:      m.StockItemID,
		Kind:             core.InventoryAlertKind(m.Kind),
		Message:          m.Message,
		CurrentQuantity:  m.CurrentQuantity,
		RequiredQuantity: m.RequiredQuantity,
		OrderRef:         m.OrderRef,
		Resolved:         m.Resolved,
		CreatedAt:        m.CreatedAt,
		ResolvedAt:       timePtr(m.ResolvedAt),
	}
}

// OpenInventoryAlert inserts the alert unless an unresolved one exists for the same
// stock item, kind and order. The partial unique index makes the check race-free.
func (r *alertRepository) OpenInventoryAlert(ctx context.Context, a *core.InventoryAlert) (bool, error) {
	m := &InventoryAlertModel{
		ID:               a.ID,
		RestaurantID:     a.RestaurantID,
		BranchID:         a.BranchID,
		StockItemID:      a.StockItemID,
		Kind:             string(a.Kind),
		Message:          a.Message,
		CurrentQuantity:  a.CurrentQuantity,
		RequiredQuantity: a.RequiredQuantity,
		OrderRef:         a.OrderRef,
		CreatedAt:        a.CreatedAt,
	}
	result := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:     []clause.Column{{Name: "stock_item_id"}, {Name: "kind"}, {Name: "order_ref"}},
		TargetWhere: clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "NOT resolved"}}},
		DoNothing:   true,
	}).Create(m)
	if result.Error != nil {
		return false, fmt.Errorf("failed to open inventory alert: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *alertRepository) ResolveInventoryAlerts(ctx context.Context, stockItemID string, kind core.InventoryAlertKind, at time.Time) (int, error) {
	result := r.conn(ctx).Model(&InventoryAlertModel{}).
		Where("stock_item_id = ? AND kind = ? AND NOT resolved", stockItemID, string(kind)).
		Updates(map[string]interface{}{
			"resolved":    true,
			"resolved_at": at,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to resolve inventory alerts: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

func (r *alertRepository) ListInventoryAlerts(ctx context.Context, f core.AlertFilter) ([]*core.InventoryAlert, error) {
	query := r.conn(ctx).Model(&InventoryAlertModel{})
	if f.RestaurantID != "" {
		query = query.Where("restaurant_id = ?", f.RestaurantID)
	}
	if f.BranchID != "" {
		query = query.Where("branch_id = ?", f.BranchID)
	}
	if f.StockItemID != "" {
		query = query.Where("stock_item_id = ?", f.StockItemID)
	}
	if f.Kind != "" {
		query = query.Where("kind = ?", string(f.Kind))
	}
	if f.UnresolvedOnly {
		query = query.Where("NOT resolved")
	}

	var models []InventoryAlertModel
	if err := query.Order("created_at").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list inventory alerts: %w", err)
	}
	alerts := make([]*core.InventoryAlert, len(models))
	for i := range models {
		alerts[i] = inventoryAlertFromModel(&models[i])
	}
	return alerts, nil
}

// CreateProfitAlert stores at most one alert per scope, kind, subject and day
func (r *alertRepository) CreateProfitAlert(ctx context.Context, a *core.ProfitAlert) (bool, error) {
	m := &ProfitAlertModel{
		ID:           a.ID,
		RestaurantID: a.RestaurantID,
		BranchID:     a.BranchID,
		Kind:         string(a.Kind),
		Subject:      a.Subject,
		Day:          dateOnly(a.Day),
		Message:      a.Message,
		Value:        a.Value,
		CreatedAt:    a.CreatedAt,
	}
	result := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "restaurant_id"}, {Name: "branch_id"}, {Name: "kind"}, {Name: "subject"}, {Name: "day"}},
		DoNothing: true,
	}).Create(m)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create profit alert: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *alertRepository) ListProfitAlerts(ctx context.Context, restaurantID string, from, to time.Time) ([]*core.ProfitAlert, error) {
	var models []ProfitAlertModel
	if err := r.conn(ctx).
		Where("restaurant_id = ? AND day BETWEEN ? AND ?", restaurantID, dateParam(from), dateParam(to)).
		Order("day, created_at").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list profit alerts: %w", err)
	}
	alerts := make([]*core.ProfitAlert, len(models))
	for i, m := range models {
		alerts[i] = &core.ProfitAlert{
			ID:           m.ID,
			RestaurantID: m.RestaurantID,
			BranchID:     m.BranchID,
			Kind:         core.ProfitAlertKind(m.Kind),
			Subject:      m.Subject,
			Day:          r.day(m.Day),
			Message:      m.Message,
			Value:        m.Value,
			CreatedAt:    m.CreatedAt,
		}
	}
	return alerts, nil
}

// CreateWasteAlert stores at most one alert per scope, kind, recurrence group and day
func (r *alertRepository) CreateWasteAlert(ctx context.Context, a *core.WasteAlert) (bool, error) {
	m := &WasteAlertModel{
		ID:           a.ID,
		RestaurantID: a.RestaurantID,
		BranchID:     a.BranchID,
		StockItemID:  a.StockItemID,
		ReasonID:     a.ReasonID,
		RecurrenceID: a.RecurrenceID,
		Kind:         a.Kind,
		Occurrences:  a.Occurrences,
		Day:          dateOnly(a.Day),
		CreatedAt:    a.CreatedAt,
	}
	result := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "restaurant_id"}, {Name: "branch_id"}, {Name: "kind"}, {Name: "recurrence_id"}, {Name: "day"}},
		DoNothing: true,
	}).Create(m)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create waste alert: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *alertRepository) ListWasteAlerts(ctx context.Context, restaurantID string) ([]*core.WasteAlert, error) {
	var models []WasteAlertModel
	if err := r.conn(ctx).Where("restaurant_id = ?", restaurantID).Order("created_at").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list waste alerts: %w", err)
	}
	alerts := make([]*core.WasteAlert, len(models))
	for i, m := range models {
		alerts[i] = &core.WasteAlert{
			ID:           m.ID,
			RestaurantID: m.RestaurantID,
			BranchID:     m.BranchID,
			StockItemID:  m.StockItemID,
			ReasonID:     m.ReasonID,
			RecurrenceID: m.RecurrenceID,
			Kind:         m.Kind,
			Occurrences:  m.Occurrences,
			Day:          r.day(m.Day),
			CreatedAt:    m.CreatedAt,
		}
	}
	return alerts, nil
}

func (r *alertRepository) RecordHandlerFailure(ctx context.Context, f *core.HandlerFailure) error {
	m := &HandlerFailureModel{
		ID:          f.ID,
		EventType:   f.EventType,
		AggregateID: f.AggregateID,
		Handler:     f.Handler,
		Attempts:    f.Attempts,
		ErrorKind:   string(f.ErrorKind),
		Message:     f.Message,
		CreatedAt:   f.CreatedAt,
	}
	if err := r.conn(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to record handler failure: %w", err)
	}
	return nil
}

// ListHandlerFailures returns the newest failures first
func (r *alertRepository) ListHandlerFailures(ctx context.Context, limit int) ([]*core.HandlerFailure, error) {
	query := r.conn(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var models []HandlerFailureModel
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list handler failures: %w", err)
	}
	failures := make([]*core.HandlerFailure, len(models))
	for i, m := range models {
		failures[i] = &core.HandlerFailure{
			ID:          m.ID,
			EventType:   m.EventType,
			AggregateID: m.AggregateID,
			Handler:     m.Handler,
			Attempts:    m.Attempts,
			ErrorKind:   core.ErrorKind(m.ErrorKind),
			Message:     m.Message,
			CreatedAt:   m.CreatedAt,
		}
	}
	return failures, nil
}
