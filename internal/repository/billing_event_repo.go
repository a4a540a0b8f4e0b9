package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/scribe_server/internal/model"
)

type BillingEventRepository struct {
	db *gorm.DB
}

func NewBillingEventRepository(db *gorm.DB) *BillingEventRepository {
	return &BillingEventRepository{db: db}
}

// Processed 判断事件是否已经成功处理过
func (r *BillingEventRepository) Processed(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.BillingEvent{}).
		Where("id = ? AND status = ?", eventID, model.BillingEventApplied).
		Count(&count).Error
	return count > 0, err
}

// Record 记录处理结果，同一事件重复记录时保留第一次
func (r *BillingEventRepository) Record(ctx context.Context, event *model.BillingEvent) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(event).Error
}
