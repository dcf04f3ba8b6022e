package repository

import (
	"context"

	"gorm.io/gorm"

	"pharmcatalog/internal/model"
)

// DrugRepository defines catalog persistence operations.
type DrugRepository interface {
	List(ctx context.Context) ([]model.Drug, error)
	FindByID(ctx context.Context, id uint) (*model.Drug, error)
	Create(ctx context.Context, drug *model.Drug) error
	// Update loads the drug, applies mutate and saves it in one transaction.
	Update(ctx context.Context, id uint, mutate func(drug *model.Drug) error) (*model.Drug, error)
	// Delete removes the drug; gorm.ErrRecordNotFound when no row matched.
	Delete(ctx context.Context, id uint) error
}

type drugRepository struct {
	db *gorm.DB
}

// NewDrugRepository creates a new drug repository.
func NewDrugRepository(db *gorm.DB) DrugRepository {
	return &drugRepository{db: db}
}

// List returns every drug, newest id first.
func (r *drugRepository) List(ctx context.Context) ([]model.Drug, error) {
	drugs := []model.Drug{}
	if err := r.db.WithContext(ctx).Order("id DESC").Find(&drugs).Error; err != nil {
		return nil, err
	}
	return drugs, nil
}

// FindByID finds a drug by ID.
func (r *drugRepository) FindByID(ctx context.Context, id uint) (*model.Drug, error) {
	var drug model.Drug
	if err := r.db.WithContext(ctx).First(&drug, id).Error; err != nil {
		return nil, err
	}
	return &drug, nil
}

// Create creates a new drug record.
func (r *drugRepository) Create(ctx context.Context, drug *model.Drug) error {
	return r.db.WithContext(ctx).Create(drug).Error
}

func (r *drugRepository) Update(ctx context.Context, id uint, mutate func(drug *model.Drug) error) (*model.Drug, error) {
	var drug model.Drug
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&drug, id).Error; err != nil {
			return err
		}
		if err := mutate(&drug); err != nil {
			return err
		}
		return tx.Save(&drug).Error
	})
	if err != nil {
		return nil, err
	}
	return &drug, nil
}

func (r *drugRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Drug{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
