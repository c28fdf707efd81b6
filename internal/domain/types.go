// Package domain defines the core entities of the finledger store.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Direction encodes the money-flow meaning of a transaction. Amounts are
// always stored as absolute values; Direction carries the sign semantics.
// Use ValidateDirection to ensure validity before use.
type Direction string

const (
	DirectionExpense Direction = "EXPENSE" // money spent on goods/services
	DirectionIncome  Direction = "INCOME"  // money received (salary, deposits)
	DirectionPayment Direction = "PAYMENT" // paying debts, e.g. a credit card bill
	DirectionRefund  Direction = "REFUND"  // credits/refunds back
)

// SourceType identifies which statement layout a row came from.
type SourceType string

const (
	SourceCreditCard     SourceType = "credit_card"
	SourceAccountExtract SourceType = "account_extract"
)

var (
	validDirections = map[Direction]struct{}{
		DirectionExpense: {}, DirectionIncome: {},
		DirectionPayment: {}, DirectionRefund: {},
	}

	validSourceTypes = map[SourceType]struct{}{
		SourceCreditCard: {}, SourceAccountExtract: {},
	}
)

// ValidateDirection checks if direction is valid.
func ValidateDirection(d Direction) bool {
	_, ok := validDirections[d]
	return ok
}

// ValidateSourceType checks if source type is valid.
func ValidateSourceType(s SourceType) bool {
	_, ok := validSourceTypes[s]
	return ok
}

// DefaultCurrency is the only currency this store handles.
const DefaultCurrency = "BRL"

// SubscriptionsCategoryID is the reserved id of the protected "Assinaturas"
// category. It is seeded at migration time, can never be renamed or deleted,
// and only transactions linked to a subscription may use it.
const SubscriptionsCategoryID = 1

// SubscriptionsCategoryName is the protected category's fixed name.
const SubscriptionsCategoryName = "Assinaturas"

// CategoryCatalog is the fixed category vocabulary communicated to the
// categorizer. The protected subscriptions category is part of the catalog
// but must never be returned by the categorizer.
var CategoryCatalog = []string{
	"Supermercado",
	"Restaurantes",
	"Transporte",
	SubscriptionsCategoryName,
	"Utilidades",
	"Saúde",
	"Entretenimento",
	"Compras",
	"Educação",
	"Moradia",
	"Seguros",
	"Investimentos",
	"Impostos",
	"Transferências",
	"Outros",
}

// DefaultCategoryName is the fallback used when categorization fails or
// produces an invalid value.
const DefaultCategoryName = "Outros"

// InCatalog reports whether name is one of the known category names.
func InCatalog(name string) bool {
	for _, c := range CategoryCatalog {
		if c == name {
			return true
		}
	}
	return false
}

// NormalizedRow is a single parsed statement line. It is transient: the
// importer consumes it immediately and it is never persisted directly.
type NormalizedRow struct {
	Date             time.Time
	Description      string
	Amount           float64 // absolute value, >= 0
	Direction        Direction
	OriginalCategory string // category column from the statement, if any
	SourceType       SourceType
	RawPayload       string // JSON copy of the original row for audit
}

// NewNormalizedRow creates a validated row. Amount must already be an
// absolute value; the parser resolves sign into Direction.
func NewNormalizedRow(date time.Time, description string, amount float64, dir Direction, source SourceType) (*NormalizedRow, error) {
	if date.IsZero() {
		return nil, fmt.Errorf("row date cannot be zero")
	}
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("row description cannot be empty")
	}
	if amount < 0 {
		return nil, fmt.Errorf("row amount must be non-negative, got %f", amount)
	}
	if !ValidateDirection(dir) {
		return nil, fmt.Errorf("invalid direction: %s", dir)
	}
	if !ValidateSourceType(source) {
		return nil, fmt.Errorf("invalid source type: %s", source)
	}
	return &NormalizedRow{
		Date:        date,
		Description: description,
		Amount:      amount,
		Direction:   dir,
		SourceType:  source,
	}, nil
}

// Transaction is a persisted statement row.
type Transaction struct {
	ID               int64      `json:"id"`
	Date             time.Time  `json:"date"`
	Description      string     `json:"description"`
	Amount           float64    `json:"amount"` // always >= 0
	Currency         string     `json:"currency"`
	Direction        Direction  `json:"transaction_type"`
	OriginalCategory string     `json:"original_category,omitempty"`
	CategoryID       int64      `json:"category_id"`
	SubscriptionID   *int64     `json:"subscription_id,omitempty"`
	IncomeSourceID   *int64     `json:"income_source_id,omitempty"`
	SourceFile       string     `json:"source_file,omitempty"`
	SourceType       SourceType `json:"source_type"`
	RawPayload       string     `json:"raw_data,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Category groups transactions. Names are unique, matched
// case-insensitively by the fuzzy lookup.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Protected reports whether this is the reserved subscriptions category.
func (c Category) Protected() bool {
	return c.ID == SubscriptionsCategoryID
}

// Subscription tracks a recurring charge. CurrentValue is denormalized: it
// must always equal the amount of the chronologically latest linked
// transaction, or 0 if none is linked. It is recomputed on every link and
// unlink, never set inline.
type Subscription struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Pattern      string    `json:"pattern,omitempty"` // exact-match description trigger
	CurrentValue float64   `json:"current_value"`
	Currency     string    `json:"currency"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IgnoreRule suppresses matching rows on future imports. A nil
// FuzzyThreshold means the rule only matches exact description equality.
type IgnoreRule struct {
	ID             int64     `json:"id"`
	Description    string    `json:"description"`
	FuzzyThreshold *float64  `json:"fuzzy_threshold,omitempty"`
	UsageCount     int       `json:"usage_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// NameMapping suggests a canonical renamed description for rows whose
// description fuzzy-matches Pattern.
type NameMapping struct {
	ID             int64     `json:"id"`
	Pattern        string    `json:"pattern"`
	MappedName     string    `json:"mapped_name"`
	FuzzyThreshold float64   `json:"fuzzy_threshold"`
	UsageCount     int       `json:"usage_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IncomeSource tracks expected recurring income. CurrentExpectedAmount is
// denormalized from the history; ExpectedForMonth consults the append-only
// history entries.
type IncomeSource struct {
	ID                    int64     `json:"id"`
	Name                  string    `json:"name"`
	CNPJ                  string    `json:"cnpj,omitempty"` // Brazilian tax id, optional
	Description           string    `json:"description,omitempty"`
	CurrentExpectedAmount float64   `json:"current_expected_amount"`
	Currency              string    `json:"currency"`
	IsActive              bool      `json:"is_active"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// IncomeSourceHistory is one append-only change record for an income
// source's expected amount.
type IncomeSourceHistory struct {
	ID             int64     `json:"id"`
	IncomeSourceID int64     `json:"income_source_id"`
	ExpectedAmount float64   `json:"expected_amount"`
	EffectiveDate  time.Time `json:"effective_date"`
	Note           string    `json:"note,omitempty"`
}
