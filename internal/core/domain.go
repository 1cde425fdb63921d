package core

import (
	"errors"
	"fmt"
	"time"
)

const (
	Expense TransactionKind = "expense"
	Income  TransactionKind = "income"
)

// DefaultBudgetCents is the budget a brand-new owner's first wallet
// starts with when there is no prior period to carry forward.
const DefaultBudgetCents int64 = 100_000 // 1000 units

type (
	TransactionKind string

	Category string

	// Wallet is a monthly budget envelope. At most one wallet exists per
	// (owner, month, year), and at most one wallet per owner is active.
	Wallet struct {
		ID          int64
		OwnerID     int64
		Month       int // 1-12
		Year        int
		BudgetCents int64
		IsActive    bool
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// Transaction is a single income or expense record. It belongs to
	// exactly one wallet for its entire lifetime.
	Transaction struct {
		ID          int64
		WalletID    int64
		Kind        TransactionKind
		AmountCents int64
		Category    Category
		Description string
		Date        time.Time
		CreatedAt   time.Time
	}

	// NewTransaction is the input for recording a transaction. A zero
	// Date means "use the current time".
	NewTransaction struct {
		Kind        TransactionKind
		AmountCents int64
		Category    Category
		Description string
		Date        time.Time
	}

	// TransactionPatch carries a partial update. Zero values mean "leave
	// unchanged", except Description: a non-nil pointer replaces the
	// stored value even when it points at the empty string.
	TransactionPatch struct {
		Kind        TransactionKind
		AmountCents int64
		Category    Category
		Description *string
		Date        time.Time
	}
)

// Categories is the closed set of valid transaction categories.
var Categories = []Category{
	"food",
	"gas",
	"family",
	"coffee",
	"shopping",
	"bills",
	"entertainment",
	"health",
	"other",
}

// ErrInvalidInput is the base error every validation failure wraps, so
// callers can classify with a single errors.Is check.
var ErrInvalidInput = errors.New("invalid input")

var (
	ErrInvalidKind     = fmt.Errorf("%w: kind must be expense or income", ErrInvalidInput)
	ErrInvalidAmount   = fmt.Errorf("%w: amount must be greater than zero", ErrInvalidInput)
	ErrInvalidCategory = fmt.Errorf("%w: unknown category", ErrInvalidInput)
	ErrInvalidBudget   = fmt.Errorf("%w: budget must not be negative", ErrInvalidInput)
	ErrInvalidDate     = fmt.Errorf("%w: invalid date", ErrInvalidInput)
)

func (k TransactionKind) Validate() error {
	switch k {
	case Expense, Income:
		return nil
	default:
		return ErrInvalidKind
	}
}

func (c Category) Validate() error {
	for _, known := range Categories {
		if c == known {
			return nil
		}
	}
	return ErrInvalidCategory
}

func (n NewTransaction) Validate() error {
	if err := n.Kind.Validate(); err != nil {
		return err
	}
	if n.AmountCents <= 0 {
		return ErrInvalidAmount
	}
	if n.Category == "" {
		return ErrInvalidCategory
	}
	return n.Category.Validate()
}

// Validate checks only the fields the patch actually carries. Unlike the
// create path a zero amount is allowed here since it means "unchanged".
func (p TransactionPatch) Validate() error {
	if p.Kind != "" {
		if err := p.Kind.Validate(); err != nil {
			return err
		}
	}
	if p.AmountCents < 0 {
		return ErrInvalidAmount
	}
	if p.Category != "" {
		if err := p.Category.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Apply merges the patch into t and returns the result.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.Kind != "" {
		t.Kind = p.Kind
	}
	if p.AmountCents != 0 {
		t.AmountCents = p.AmountCents
	}
	if p.Category != "" {
		t.Category = p.Category
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if !p.Date.IsZero() {
		t.Date = p.Date
	}
	return t
}
