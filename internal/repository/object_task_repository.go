package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"golang-object-generation/internal/models"
	"golang-object-generation/internal/utils"
)

type ObjectTaskRepository interface {
	Create(ctx context.Context, task *models.ObjectTaskEntity, opts ...utils.DBOption) error
	Get(ctx context.Context, taskID string, opts ...utils.DBOption) (*models.ObjectTaskEntity, error)
}

type objectTaskRepository struct {
	db *gorm.DB
}

func NewObjectTaskRepository(db *gorm.DB) ObjectTaskRepository {
	return &objectTaskRepository{db: db}
}

func (r *objectTaskRepository) Create(ctx context.Context, task *models.ObjectTaskEntity, opts ...utils.DBOption) error {
	tx := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return tx.Create(task).Error
}

func (r *objectTaskRepository) Get(ctx context.Context, taskID string, opts ...utils.DBOption) (*models.ObjectTaskEntity, error) {
	var task models.ObjectTaskEntity
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.Where("id = ?", taskID).First(&task)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &task, nil
}
