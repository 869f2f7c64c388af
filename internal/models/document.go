// internal/models/document.go
package models

import (
	"github.com/google/uuid"
)

type Document struct {
	BaseModel
	ApplicationID uuid.UUID `json:"application_id" gorm:"type:uuid;not null;index"`
	UploadedBy    uuid.UUID `json:"uploaded_by" gorm:"type:uuid;not null"`
	Name          string    `json:"name" gorm:"size:255;not null"`
	StorageKey    string    `json:"storage_key" gorm:"size:512;not null"`
	URL           string    `json:"url" gorm:"type:text"`
	MimeType      string    `json:"mime_type" gorm:"size:100"`
	Size          int64     `json:"size"`

	// Relationships
	Application Application `json:"application,omitempty" gorm:"foreignKey:ApplicationID"`
	Uploader    User        `json:"uploader,omitempty" gorm:"foreignKey:UploadedBy"`
}

type DropdownOption struct {
	BaseModel
	Category DropdownCategory `json:"category" gorm:"type:varchar(30);not null;uniqueIndex:idx_dropdowns_category_value"`
	Value    string           `json:"value" gorm:"size:100;not null;uniqueIndex:idx_dropdowns_category_value"`
	Label    string           `json:"label" gorm:"size:200;not null"`
	SortKey  int              `json:"sort_key" gorm:"default:0"`
	Active   bool             `json:"active" gorm:"default:true"`
}
