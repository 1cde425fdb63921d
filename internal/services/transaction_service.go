package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"walletd/internal/core"
	"walletd/internal/storage"
)

// TransactionService records and mutates transactions. Every read,
// update and delete verifies ownership through the owning wallet; a
// foreign transaction is reported exactly like a missing one.
type TransactionService struct {
	repo    *storage.SQLiteRepository
	wallets *WalletService
	now     func() time.Time
}

func NewTransactionService(repo *storage.SQLiteRepository, wallets *WalletService, now func() time.Time) *TransactionService {
	if now == nil {
		now = time.Now
	}
	return &TransactionService{repo: repo, wallets: wallets, now: now}
}

// Record validates the input and appends a transaction to the owner's
// active wallet, creating the wallet period first when needed. The
// transaction date defaults to the current time.
func (s *TransactionService) Record(ctx context.Context, ownerID int64, input core.NewTransaction) (core.Transaction, error) {
	if err := input.Validate(); err != nil {
		return core.Transaction{}, err
	}

	wallet, err := s.wallets.ResolveActivePeriod(ctx, ownerID)
	if err != nil {
		return core.Transaction{}, err
	}

	now := s.now()
	date := input.Date
	if date.IsZero() {
		date = now
	}

	return s.repo.CreateTransaction(ctx, core.Transaction{
		WalletID:    wallet.ID,
		Kind:        input.Kind,
		AmountCents: input.AmountCents,
		Category:    input.Category,
		Description: input.Description,
		Date:        date,
		CreatedAt:   now,
	})
}

// Get returns a single transaction owned by ownerID.
func (s *TransactionService) Get(ctx context.Context, ownerID, id int64) (core.Transaction, error) {
	return s.repo.GetTransactionForOwner(ctx, id, ownerID)
}

// List returns the current period's transactions, newest first. When the
// month has no wallet yet the list is empty; listing never creates one.
func (s *TransactionService) List(ctx context.Context, ownerID int64) ([]core.Transaction, error) {
	wallet, err := s.wallets.CurrentWallet(ctx, ownerID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current wallet: %w", err)
	}
	return s.repo.ListTransactions(ctx, wallet.ID)
}

// Update merges the patch into an owned transaction. Supplied fields are
// validated the same way the create path validates them.
func (s *TransactionService) Update(ctx context.Context, ownerID, id int64, patch core.TransactionPatch) (core.Transaction, error) {
	if err := patch.Validate(); err != nil {
		return core.Transaction{}, err
	}

	transaction, err := s.repo.GetTransactionForOwner(ctx, id, ownerID)
	if err != nil {
		return core.Transaction{}, err
	}

	transaction = patch.Apply(transaction)
	if err := s.repo.UpdateTransaction(ctx, transaction); err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction updated", "id", id, "owner_id", ownerID)
	return transaction, nil
}

// Delete removes an owned transaction permanently. The owning wallet is
// untouched. A repeated delete reports not-found.
func (s *TransactionService) Delete(ctx context.Context, ownerID, id int64) error {
	if _, err := s.repo.GetTransactionForOwner(ctx, id, ownerID); err != nil {
		return err
	}
	if err := s.repo.DeleteTransaction(ctx, id); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id, "owner_id", ownerID)
	return nil
}
