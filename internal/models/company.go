package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Company struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CIN               string          `gorm:"column:cin;uniqueIndex;size:32" json:"cin"`
	Name              string          `gorm:"index" json:"name"`
	Slug              string          `gorm:"index" json:"slug"`
	Category          string          `json:"category"`
	SubCategory       string          `json:"subCategory"`
	Class             string          `json:"class"`
	AuthorizedCapital decimal.Decimal `gorm:"type:numeric(20,2)" json:"authorizedCapital"`
	PaidUpCapital     decimal.Decimal `gorm:"type:numeric(20,2)" json:"paidUpCapital"`
	RegisteredOn      *time.Time      `json:"registeredOn,omitempty"`
	Address           string          `json:"address"`
	Status            string          `gorm:"index" json:"status"`
	StateCode         string          `gorm:"index;size:8" json:"stateCode"`
	NICCode           string          `gorm:"column:nic_code" json:"nicCode"`
	ImportID          *uuid.UUID      `gorm:"type:uuid;index" json:"importId,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}
