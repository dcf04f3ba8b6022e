package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func init() {
	// Prices travel as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Drug is one pharmacy catalog entry.
type Drug struct {
	ID           uint                `json:"id" gorm:"primaryKey"`
	Name         string              `json:"name" gorm:"size:255;not null;index"`
	Description  *string             `json:"description" gorm:"type:text"`
	Price        decimal.NullDecimal `json:"price" gorm:"type:decimal(12,2)"`
	Type         *string             `json:"type" gorm:"size:255"`
	Images       []string            `json:"images" gorm:"serializer:json;type:text"`
	Genus        *string             `json:"genus" gorm:"size:255"`
	Dosage       *string             `json:"dosage" gorm:"size:255"`
	Manufacturer *string             `json:"manufacturer" gorm:"size:255"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// BeforeSave stores an empty list rather than NULL.
func (d *Drug) BeforeSave(tx *gorm.DB) error {
	if d.Images == nil {
		d.Images = []string{}
	}
	return nil
}

// AfterFind normalizes rows written before images were tracked.
func (d *Drug) AfterFind(tx *gorm.DB) error {
	if d.Images == nil {
		d.Images = []string{}
	}
	return nil
}
