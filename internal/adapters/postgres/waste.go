package postgres

import (
	"context"
	"fmt"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"gorm.io/gorm/clause"
)

// WasteRepository implementation

func (r *wasteRepository) CreateWasteRecord(ctx context.Context, w *core.WasteRecord) error {
	if err := r.conn(ctx).Create(WasteRecordModelFromDomain(w)).Error; err != nil {
		return translate(err, "waste_record", w.ID)
	}
	return nil
}

func (r *wasteRepository) GetWasteRecord(ctx context.Context, id string) (*core.WasteRecord, error) {
	var m WasteRecordModel
	if err := r.conn(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err, "waste_record", id)
	}
	return m.ToDomain(), nil
}

func (r *wasteRepository) LockWasteRecord(ctx context.Context, id string) (*core.WasteRecord, error) {
	var m WasteRecordModel
	if err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&m).Error; err != nil {
		return nil, translate(err, "waste_record", id)
	}
	return m.ToDomain(), nil
}

// UpdateWasteRecord writes the review fields and recurrence flags of a record
func (r *wasteRepository) UpdateWasteRecord(ctx context.Context, w *core.WasteRecord) error {
	result := r.conn(ctx).Model(&WasteRecordModel{}).
		Where("id = ?", w.ID).
		Updates(map[string]interface{}{
			"status":             string(w.Status),
			"priority":           string(w.Priority),
			"is_recurring_issue": w.IsRecurringIssue,
			"recurrence_id":      nullString(w.RecurrenceID),
			"notes":              nullString(w.Notes),
			"photo_url":          nullString(w.PhotoURL),
			"reviewed_by":        nullString(w.ReviewedBy),
			"review_notes":       nullString(w.ReviewNotes),
			"reviewed_at":        nullTime(w.ReviewedAt),
		})
	return requireRow(result, "waste_record", w.ID)
}

func (r *wasteRepository) ListWasteRecords(ctx context.Context, f core.WasteFilter) ([]*core.WasteRecord, error) {
	query := r.conn(ctx).Model(&WasteRecordModel{})
	if f.RestaurantID != "" {
		query = query.Where("restaurant_id = ?", f.RestaurantID)
	}
	if f.BranchID != "" {
		query = query.Where("branch_id = ?", f.BranchID)
	}
	if f.StockItemID != "" {
		query = query.Where("stock_item_id = ?", f.StockItemID)
	}
	if f.ReasonID != "" {
		query = query.Where("reason_id = ?", f.ReasonID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		query = query.Where("status IN ?", statuses)
	}
	if !f.From.IsZero() {
		query = query.Where("created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		query = query.Where("created_at < ?", f.To)
	}

	var models []WasteRecordModel
	if err := query.Order("created_at").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list waste records: %w", err)
	}
	records := make([]*core.WasteRecord, len(models))
	for i := range models {
		records[i] = models[i].ToDomain()
	}
	return records, nil
}
