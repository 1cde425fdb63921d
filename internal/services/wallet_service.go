// Package services contains the ledger engine: wallet period
// resolution, transaction recording and mutation, and the aggregation
// behind the home view and the wallet history.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"walletd/internal/core"
	"walletd/internal/storage"
)

// topCategoriesLimit caps the category breakdown of the home view.
const topCategoriesLimit = 5

// historyConcurrency bounds the parallel per-wallet aggregations of the
// history report.
const historyConcurrency = 4

// WalletService resolves wallet periods and computes the derived views.
// The clock is injected so period resolution is a pure function of its
// inputs.
type WalletService struct {
	repo *storage.SQLiteRepository
	now  func() time.Time
}

func NewWalletService(repo *storage.SQLiteRepository, now func() time.Time) *WalletService {
	if now == nil {
		now = time.Now
	}
	return &WalletService{repo: repo, now: now}
}

// Ping reports whether the backing store is reachable.
func (s *WalletService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// ResolveActivePeriod finds or creates the owner's wallet for the
// current month. A newly created wallet carries the most recent prior
// wallet's budget forward (or the system default for a first-ever
// wallet) and deactivates every other wallet of the owner.
//
// Two requests crossing a month boundary may race on the create; the
// unique (owner, month, year) constraint makes the loser fail with a
// duplicate, which is treated as "already created" and re-fetched.
func (s *WalletService) ResolveActivePeriod(ctx context.Context, ownerID int64) (core.Wallet, error) {
	now := s.now()
	month, year := int(now.Month()), now.Year()

	wallet, err := s.repo.FindWallet(ctx, ownerID, month, year)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return core.Wallet{}, fmt.Errorf("find wallet: %w", err)
	}

	budget := core.DefaultBudgetCents
	prior, err := s.repo.LatestWallet(ctx, ownerID)
	if err == nil {
		budget = prior.BudgetCents
	} else if !errors.Is(err, storage.ErrNotFound) {
		return core.Wallet{}, fmt.Errorf("find prior wallet: %w", err)
	}

	wallet, err = s.repo.CreateWallet(ctx, ownerID, month, year, budget, now)
	if errors.Is(err, storage.ErrDuplicateWallet) {
		// Lost the race: a concurrent request created this period first.
		slog.InfoContext(ctx, "Wallet already created concurrently, re-fetching",
			"owner_id", ownerID, "month", month, "year", year)
		wallet, err = s.repo.FindWallet(ctx, ownerID, month, year)
		if err != nil {
			return core.Wallet{}, fmt.Errorf("re-fetch wallet after conflict: %w", err)
		}
		return wallet, nil
	}
	if err != nil {
		return core.Wallet{}, fmt.Errorf("create wallet: %w", err)
	}

	if err := s.repo.DeactivateOtherWallets(ctx, ownerID, wallet.ID, now); err != nil {
		return core.Wallet{}, fmt.Errorf("deactivate stale wallets: %w", err)
	}

	return wallet, nil
}

// CurrentWallet returns the owner's wallet for the current month without
// creating one; storage.ErrNotFound when the month has no wallet yet.
func (s *WalletService) CurrentWallet(ctx context.Context, ownerID int64) (core.Wallet, error) {
	now := s.now()
	return s.repo.FindWallet(ctx, ownerID, int(now.Month()), now.Year())
}

// HomeView computes the aggregate for the home screen: period summary,
// top expense categories and date-labeled transaction groups. Resolving
// the period may create it as a side effect.
func (s *WalletService) HomeView(ctx context.Context, ownerID int64) (core.HomeView, error) {
	wallet, err := s.ResolveActivePeriod(ctx, ownerID)
	if err != nil {
		return core.HomeView{}, err
	}

	totals, err := s.repo.WalletTotals(ctx, wallet.ID)
	if err != nil {
		return core.HomeView{}, err
	}

	categories, err := s.repo.CategoryTotals(ctx, wallet.ID, topCategoriesLimit)
	if err != nil {
		return core.HomeView{}, err
	}
	for i := range categories {
		categories[i].Percentage = core.Percentage(categories[i].TotalCents, totals.ExpenseCents)
	}

	transactions, err := s.repo.ListTransactions(ctx, wallet.ID)
	if err != nil {
		return core.HomeView{}, err
	}

	return core.HomeView{
		Wallet:            core.Summarize(wallet, totals),
		TopCategories:     categories,
		TransactionGroups: core.GroupByDateLabel(transactions, s.now()),
	}, nil
}

// History returns every wallet of the owner, newest period first, each
// enriched with its totals. Per-wallet aggregation fans out over a
// bounded errgroup; the remaining-balance formula is the one the home
// view uses.
func (s *WalletService) History(ctx context.Context, ownerID int64) ([]core.HistoryEntry, error) {
	wallets, err := s.repo.ListWallets(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	entries := make([]core.HistoryEntry, len(wallets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(historyConcurrency)
	for i, wallet := range wallets {
		g.Go(func() error {
			totals, err := s.repo.WalletTotals(gctx, wallet.ID)
			if err != nil {
				return fmt.Errorf("totals for wallet %d: %w", wallet.ID, err)
			}
			entries[i] = core.HistoryEntry{
				Wallet:         wallet,
				SpentCents:     totals.ExpenseCents,
				IncomeCents:    totals.IncomeCents,
				RemainingCents: core.RemainingCents(wallet.BudgetCents, totals),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return entries, nil
}

// UpdateBudget sets the current period's budget, resolving (and possibly
// creating) the period first.
func (s *WalletService) UpdateBudget(ctx context.Context, ownerID, budgetCents int64) (core.Wallet, error) {
	if budgetCents < 0 {
		return core.Wallet{}, core.ErrInvalidBudget
	}

	wallet, err := s.ResolveActivePeriod(ctx, ownerID)
	if err != nil {
		return core.Wallet{}, err
	}

	if err := s.repo.UpdateWalletBudget(ctx, wallet.ID, budgetCents, s.now()); err != nil {
		return core.Wallet{}, fmt.Errorf("update budget: %w", err)
	}
	wallet.BudgetCents = budgetCents

	slog.InfoContext(ctx, "Budget updated",
		"owner_id", ownerID, "wallet_id", wallet.ID, "budget_cents", budgetCents)

	return wallet, nil
}
