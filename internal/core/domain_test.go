package core

import (
	"errors"
	"testing"
	"time"
)

func TestNewTransactionValidate(t *testing.T) {
	valid := NewTransaction{
		Kind:        Expense,
		AmountCents: 1250,
		Category:    "food",
		Description: "lunch",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid transaction rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*NewTransaction)
		wantErr error
	}{
		{"missing kind", func(n *NewTransaction) { n.Kind = "" }, ErrInvalidKind},
		{"unknown kind", func(n *NewTransaction) { n.Kind = "transfer" }, ErrInvalidKind},
		{"zero amount", func(n *NewTransaction) { n.AmountCents = 0 }, ErrInvalidAmount},
		{"negative amount", func(n *NewTransaction) { n.AmountCents = -100 }, ErrInvalidAmount},
		{"missing category", func(n *NewTransaction) { n.Category = "" }, ErrInvalidCategory},
		{"unknown category", func(n *NewTransaction) { n.Category = "yachts" }, ErrInvalidCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := valid
			tt.mutate(&n)
			err := n.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("validation error %v should wrap ErrInvalidInput", err)
			}
		})
	}
}

func TestTransactionPatchValidate(t *testing.T) {
	if err := (TransactionPatch{}).Validate(); err != nil {
		t.Errorf("empty patch should be valid, got %v", err)
	}
	if err := (TransactionPatch{Kind: "bogus"}).Validate(); !errors.Is(err, ErrInvalidKind) {
		t.Errorf("expected ErrInvalidKind, got %v", err)
	}
	if err := (TransactionPatch{AmountCents: -1}).Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
	if err := (TransactionPatch{Category: "nope"}).Validate(); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("expected ErrInvalidCategory, got %v", err)
	}
	if err := (TransactionPatch{Kind: Income, AmountCents: 500, Category: "other"}).Validate(); err != nil {
		t.Errorf("full valid patch rejected: %v", err)
	}
}

func TestTransactionPatchApply(t *testing.T) {
	date := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	orig := Transaction{
		ID:          7,
		WalletID:    3,
		Kind:        Expense,
		AmountCents: 2000,
		Category:    "food",
		Description: "groceries",
		Date:        date,
	}

	// Zero-value fields leave the transaction untouched.
	if got := (TransactionPatch{}).Apply(orig); got != orig {
		t.Errorf("empty patch changed transaction: %+v", got)
	}

	newDate := date.AddDate(0, 0, 2)
	got := TransactionPatch{
		Kind:        Income,
		AmountCents: 999,
		Category:    "other",
		Date:        newDate,
	}.Apply(orig)
	if got.Kind != Income || got.AmountCents != 999 || got.Category != "other" || !got.Date.Equal(newDate) {
		t.Errorf("patch not applied: %+v", got)
	}
	if got.Description != "groceries" {
		t.Errorf("description changed without being supplied: %q", got.Description)
	}

	// An explicit empty description clears the stored one.
	empty := ""
	got = TransactionPatch{Description: &empty}.Apply(orig)
	if got.Description != "" {
		t.Errorf("explicit empty description not applied: %q", got.Description)
	}
}
