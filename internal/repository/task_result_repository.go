package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"golang-object-generation/internal/models"
	"golang-object-generation/internal/utils"
)

type TaskResultRepository interface {
	Add(ctx context.Context, result *models.ObjectTaskResultEntity, opts ...utils.DBOption) error
	ListByTask(ctx context.Context, taskID string, opts ...utils.DBOption) ([]models.ObjectTaskResultEntity, error)
	GetByVersion(ctx context.Context, taskID, version string, opts ...utils.DBOption) (*models.ObjectTaskResultEntity, error)
	SetSnapshot(ctx context.Context, taskID, version string, snapshot []byte, opts ...utils.DBOption) error
}

type taskResultRepository struct {
	db *gorm.DB
}

func NewTaskResultRepository(db *gorm.DB) TaskResultRepository {
	return &taskResultRepository{db: db}
}

func (r *taskResultRepository) Add(ctx context.Context, result *models.ObjectTaskResultEntity, opts ...utils.DBOption) error {
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return tx.Create(result).Error
}

func (r *taskResultRepository) ListByTask(ctx context.Context, taskID string, opts ...utils.DBOption) ([]models.ObjectTaskResultEntity, error) {
	var results []models.ObjectTaskResultEntity
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	// Binary columns are skipped here; queries for content go through GetByVersion.
	result := db.Model(&models.ObjectTaskResultEntity{}).
		Omit("content", "snapshot").
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&results)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return results, nil
}

func (r *taskResultRepository) GetByVersion(ctx context.Context, taskID, version string, opts ...utils.DBOption) (*models.ObjectTaskResultEntity, error) {
	var res models.ObjectTaskResultEntity
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.Where("task_id = ? AND version = ?", taskID, version).First(&res)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &res, nil
}

func (r *taskResultRepository) SetSnapshot(ctx context.Context, taskID, version string, snapshot []byte, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return db.Model(&models.ObjectTaskResultEntity{}).
		Where("task_id = ? AND version = ?", taskID, version).
		Update("snapshot", snapshot).Error
}
