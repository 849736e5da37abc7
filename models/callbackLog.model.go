package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CallbackLog keeps the raw payload of queue callbacks that could not be
// matched to a record, so failed deliveries can be inspected later.
type CallbackLog struct {
	gorm.Model
	Endpoint  string         `json:"endpoint"`
	Source    string         `json:"source"`
	Outcome   string         `json:"outcome"`
	Body      datatypes.JSON `json:"body"`
	Header    datatypes.JSON `json:"header"`
	IsDeleted bool           `gorm:"default:false"`
}
