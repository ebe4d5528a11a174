package entities

import (
	"github.com/google/uuid"
)

type Tag struct {
	ID    uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	Name  string    `gorm:"size:200" json:"name"`
	Color string    `gorm:"size:7" json:"color"` // hex, e.g. #49B64E
	Slug  string    `gorm:"uniqueIndex;size:200" json:"slug"`

	Timestamp
}

type Ingredient struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	Name            string    `gorm:"size:200;index" json:"name"`
	MeasurementUnit string    `gorm:"size:200" json:"measurement_unit"`

	Timestamp
}
