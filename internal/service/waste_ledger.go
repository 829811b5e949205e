package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/dumu-tech/restaurant-ops/internal/events"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	recurrenceWindow    = 7 * 24 * time.Hour
	recurrenceThreshold = 3
	minExplanationLen   = 3
)

// RecordWasteRequest describes wasted stock
type RecordWasteRequest struct {
	StockItemID string          `json:"stock_item_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	ReasonID    string          `json:"reason_id"`
	Notes       string          `json:"notes"`
	PhotoURL    string          `json:"photo_url"`
}

// WasteLedger records waste against the inventory ledger and runs its review workflow
type WasteLedger struct {
	store  core.Store
	ledger *InventoryLedger
	bus    *events.EventBus
	tiers  core.WasteTiers
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// NewWasteLedger creates a new waste ledger. Alerts are bucketed into business days in loc.
func NewWasteLedger(store core.Store, ledger *InventoryLedger, bus *events.EventBus, tiers core.WasteTiers, loc *time.Location, logger *zap.Logger) *WasteLedger {
	return &WasteLedger{store: store, ledger: ledger, bus: bus, tiers: tiers, loc: loc, logger: logger, now: time.Now}
}

// RecordWaste removes the stock through a waste ledger entry and classifies it. Records
// whose category needs no approval are approved on the spot.
func (w *WasteLedger) RecordWaste(ctx context.Context, actor core.Actor, req RecordWasteRequest) (*core.WasteRecord, error) {
	if !req.Quantity.IsPositive() {
		return nil, core.Validation("quantity", "quantity must be greater than zero")
	}
	stock, err := w.store.Catalog().GetStockItem(ctx, req.StockItemID)
	if err != nil {
		return nil, err
	}
	reason, err := w.store.Catalog().GetWasteReason(ctx, req.ReasonID)
	if err != nil {
		return nil, err
	}
	if reason.RestaurantID != stock.RestaurantID || !reason.IsActive {
		return nil, core.Validation("reason_id", "waste reason is not available for this restaurant")
	}
	notes := strings.TrimSpace(req.Notes)
	if reason.RequiresExplanation && len(notes) < minExplanationLen {
		return nil, core.Validation("notes", fmt.Sprintf("%s needs an explanation", reason.Name))
	}
	if reason.RequiresPhoto && strings.TrimSpace(req.PhotoURL) == "" {
		return nil, core.Validation("photo_url", fmt.Sprintf("%s needs a photo", reason.Name))
	}
	category, err := w.store.Catalog().GetWasteCategory(ctx, reason.CategoryID)
	if err != nil {
		return nil, err
	}

	var (
		record *core.WasteRecord
		alert  *core.WasteAlert
	)
	err = w.store.Atomic(ctx, func(ctx context.Context) error {
		entry, err := w.ledger.RecordTransaction(ctx, RecordRequest{
			StockItemID: stock.ID,
			Type:        core.TransactionWaste,
			Quantity:    req.Quantity,
			Reason:      reason.Name,
			Actor:       actor,
		})
		if err != nil {
			return err
		}

		now := w.now()
		record = &core.WasteRecord{
			ID:            uuid.New().String(),
			TransactionID: entry.ID,
			StockItemID:   stock.ID,
			RestaurantID:  stock.RestaurantID,
			BranchID:      stock.BranchID,
			ReasonID:      reason.ID,
			CategoryID:    category.ID,
			Quantity:      req.Quantity,
			TotalCost:     entry.TotalCost,
			Status:        core.WasteApproved,
			Priority:      w.tiers.PriorityFor(entry.TotalCost),
			Notes:         notes,
			PhotoURL:      strings.TrimSpace(req.PhotoURL),
			RecordedBy:    actor.UserID,
			CreatedAt:     now,
		}
		if category.RequiresApproval {
			record.Status = core.WastePending
		} else {
			record.ReviewedBy = core.SystemActor.UserID
			record.ReviewedAt = &now
		}

		alert, err = w.detectRecurrence(ctx, record)
		if err != nil {
			return err
		}
		return w.store.Waste().CreateWasteRecord(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("waste recorded",
		zap.String("waste_id", record.ID),
		zap.String("stock_item_id", record.StockItemID),
		zap.String("quantity", record.Quantity.String()),
		zap.String("total_cost", record.TotalCost.String()),
		zap.String("priority", string(record.Priority)),
		zap.String("status", string(record.Status)),
		zap.String("actor", actor.UserID))
	if alert != nil {
		w.logger.Warn("recurring waste",
			zap.String("recurrence_id", alert.RecurrenceID),
			zap.String("stock_item_id", alert.StockItemID),
			zap.Int("occurrences", alert.Occurrences))
	}
	if _, err := w.ledger.CheckLowStock(ctx, record.StockItemID); err != nil {
		w.logger.Warn("low stock check failed", zap.String("stock_item_id", record.StockItemID), zap.Error(err))
	}

	evts := []events.Event{wasteEvent(events.EventWasteRecorded, record)}
	if record.Status == core.WasteApproved {
		evts = append(evts, wasteEvent(events.EventWasteApproved, record))
	}
	publishAll(ctx, w.bus, w.logger, evts)
	return record, nil
}

// detectRecurrence links record to earlier waste of the same stock item and reason in the
// last 7 days and opens a recurring_issue alert from the third occurrence on
func (w *WasteLedger) detectRecurrence(ctx context.Context, record *core.WasteRecord) (*core.WasteAlert, error) {
	prior, err := w.store.Waste().ListWasteRecords(ctx, core.WasteFilter{
		RestaurantID: record.RestaurantID,
		StockItemID:  record.StockItemID,
		ReasonID:     record.ReasonID,
		Statuses:     []core.WasteStatus{core.WastePending, core.WasteApproved, core.WasteInvestigating},
		From:         record.CreatedAt.Add(-recurrenceWindow),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list recent waste: %w", err)
	}
	if len(prior) == 0 {
		return nil, nil
	}

	recurrenceID := ""
	for _, p := range prior {
		if p.RecurrenceID != "" {
			recurrenceID = p.RecurrenceID
			break
		}
	}
	if recurrenceID == "" {
		recurrenceID = uuid.New().String()
	}

	record.IsRecurringIssue = true
	record.RecurrenceID = recurrenceID
	for _, p := range prior {
		if p.RecurrenceID == recurrenceID && p.IsRecurringIssue {
			continue
		}
		p.IsRecurringIssue = true
		p.RecurrenceID = recurrenceID
		if err := w.store.Waste().UpdateWasteRecord(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to link recurring waste: %w", err)
		}
	}

	occurrences := len(prior) + 1
	if occurrences < recurrenceThreshold {
		return nil, nil
	}
	alert := &core.WasteAlert{
		ID:           uuid.New().String(),
		RestaurantID: record.RestaurantID,
		BranchID:     record.BranchID,
		StockItemID:  record.StockItemID,
		ReasonID:     record.ReasonID,
		RecurrenceID: recurrenceID,
		Kind:         core.WasteAlertRecurringIssue,
		Occurrences:  occurrences,
		Day:          core.Day(record.CreatedAt, w.loc),
		CreatedAt:    record.CreatedAt,
	}
	created, err := w.store.Alerts().CreateWasteAlert(ctx, alert)
	if err != nil {
		return nil, fmt.Errorf("failed to create waste alert: %w", err)
	}
	if !created {
		return nil, nil
	}
	return alert, nil
}

// Approve accepts a pending or investigated waste record
func (w *WasteLedger) Approve(ctx context.Context, reviewer core.Actor, wasteID, notes string) (*core.WasteRecord, error) {
	record, err := w.review(ctx, reviewer, wasteID, core.WasteApproved, notes, nil)
	if err != nil {
		return nil, err
	}
	w.logger.Info("waste approved",
		zap.String("waste_id", wasteID),
		zap.String("total_cost", record.TotalCost.String()),
		zap.String("reviewer", reviewer.UserID))
	publishAll(ctx, w.bus, w.logger, []events.Event{wasteEvent(events.EventWasteApproved, record)})
	return record, nil
}

// Reject refuses a waste record and returns its stock through a compensating ledger entry
func (w *WasteLedger) Reject(ctx context.Context, reviewer core.Actor, wasteID, reason string) (*core.WasteRecord, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, core.Validation("reason", "a rejection needs a reason")
	}
	var reversal *core.StockTransaction
	record, err := w.review(ctx, reviewer, wasteID, core.WasteRejected, reason, func(ctx context.Context, record *core.WasteRecord) error {
		var err error
		reversal, err = w.ledger.Void(ctx, record.TransactionID, reviewer, "waste rejected: "+reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	w.logger.Info("waste rejected",
		zap.String("waste_id", wasteID),
		zap.String("transaction_id", record.TransactionID),
		zap.String("reversal_id", reversal.ID),
		zap.String("reason", reason),
		zap.String("reviewer", reviewer.UserID))
	publishAll(ctx, w.bus, w.logger, []events.Event{wasteEvent(events.EventWasteRejected, record)})
	return record, nil
}

// Investigate flags a pending waste record for follow-up before a decision
func (w *WasteLedger) Investigate(ctx context.Context, reviewer core.Actor, wasteID, notes string) (*core.WasteRecord, error) {
	var record *core.WasteRecord
	err := w.store.Atomic(ctx, func(ctx context.Context) error {
		var err error
		record, err = w.store.Waste().LockWasteRecord(ctx, wasteID)
		if err != nil {
			return err
		}
		if record.Status != core.WastePending {
			return core.InvalidTransition("waste", string(record.Status), string(core.WasteInvestigating))
		}
		record.Status = core.WasteInvestigating
		record.ReviewedBy = reviewer.UserID
		record.ReviewNotes = strings.TrimSpace(notes)
		return w.store.Waste().UpdateWasteRecord(ctx, record)
	})
	if err != nil {
		return nil, err
	}
	w.logger.Info("waste under investigation", zap.String("waste_id", wasteID), zap.String("reviewer", reviewer.UserID))
	return record, nil
}

func (w *WasteLedger) review(ctx context.Context, reviewer core.Actor, wasteID string, target core.WasteStatus, notes string, compensate func(ctx context.Context, record *core.WasteRecord) error) (*core.WasteRecord, error) {
	var record *core.WasteRecord
	err := w.store.Atomic(ctx, func(ctx context.Context) error {
		var err error
		record, err = w.store.Waste().LockWasteRecord(ctx, wasteID)
		if err != nil {
			return err
		}
		if !record.Status.CanReview() {
			return core.InvalidTransition("waste", string(record.Status), string(target))
		}
		if compensate != nil {
			if err := compensate(ctx, record); err != nil {
				return err
			}
		}
		now := w.now()
		record.Status = target
		record.ReviewedBy = reviewer.UserID
		record.ReviewNotes = strings.TrimSpace(notes)
		record.ReviewedAt = &now
		return w.store.Waste().UpdateWasteRecord(ctx, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetWasteRecord returns a waste record by id
func (w *WasteLedger) GetWasteRecord(ctx context.Context, id string) (*core.WasteRecord, error) {
	return w.store.Waste().GetWasteRecord(ctx, id)
}

// ListWaste returns waste records matching filter, oldest first
func (w *WasteLedger) ListWaste(ctx context.Context, filter core.WasteFilter) ([]*core.WasteRecord, error) {
	return w.store.Waste().ListWasteRecords(ctx, filter)
}

// ListAlerts returns recurring waste alerts of a restaurant
func (w *WasteLedger) ListAlerts(ctx context.Context, restaurantID string) ([]*core.WasteAlert, error) {
	return w.store.Alerts().ListWasteAlerts(ctx, restaurantID)
}

func wasteEvent(t events.EventType, r *core.WasteRecord) events.Event {
	return events.Event{
		Type:        t,
		AggregateID: r.ID,
		Data: events.WasteEvent{
			WasteRecordID: r.ID,
			RestaurantID:  r.RestaurantID,
			BranchID:      r.BranchID,
			StockItemID:   r.StockItemID,
			TotalCost:     r.TotalCost,
			Status:        string(r.Status),
			CreatedAt:     r.CreatedAt,
		},
	}
}
