package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContractType classifies how a recurring authorization may be charged
type ContractType string

const (
	ContractTypeScheduled   ContractType = "scheduled"   // fixed-interval charges
	ContractTypeUnscheduled ContractType = "unscheduled" // on-demand MIT charges
)

// ContractStatus represents the current state of a recurring contract
type ContractStatus string

const (
	ContractStatusPending   ContractStatus = "pending" // awaiting first CIT confirmation
	ContractStatusActive    ContractStatus = "active"
	ContractStatusPaused    ContractStatus = "paused"
	ContractStatusCancelled ContractStatus = "cancelled"
	ContractStatusExpired   ContractStatus = "expired"
)

// RecurringContract represents a tokenized authorization for merchant-initiated
// charges. Only masked card metadata is stored, never the full card number.
// Usage accumulators are monotone: updated after every successful charge,
// never decremented.
type RecurringContract struct {
	ID                 string
	TenantID           string
	CustomerID         string
	Provider           string
	ProviderContractID string
	Type               ContractType
	TokenID            string
	CardLastFour       string
	CardBrand          string
	CardExpiryMonth    int
	CardExpiryYear     int
	FrequencyDays      int
	MaxAmount          decimal.Decimal
	NextChargeDate     *time.Time
	Status             ContractStatus
	TotalCharges       int
	TotalAmountCharged decimal.Decimal
	LastChargeDate     *time.Time
	LastChargeAmount   decimal.Decimal
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CancelledAt        *time.Time
}

// CanCharge returns true if a merchant-initiated charge may be attempted
func (c *RecurringContract) CanCharge() bool {
	return c.Status == ContractStatusActive
}

// IsScheduled returns true for fixed-interval contracts
func (c *RecurringContract) IsScheduled() bool {
	return c.Type == ContractTypeScheduled
}
