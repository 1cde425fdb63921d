package core

// WalletTotals is the raw aggregation over a wallet's transactions.
type WalletTotals struct {
	ExpenseCents int64
	IncomeCents  int64
	ExpenseCount int
}

// RemainingCents is the single remaining-balance formula shared by the
// home view and the history report: income widens the headroom left by
// expenses instead of being reported separately.
func RemainingCents(budgetCents int64, totals WalletTotals) int64 {
	return budgetCents - totals.ExpenseCents + totals.IncomeCents
}

// WalletSummary is the per-period header of the home view.
type WalletSummary struct {
	ID             int64
	Month          int
	Year           int
	BudgetCents    int64
	SpentCents     int64
	RemainingCents int64
	ExpenseCount   int
}

// Summarize derives a WalletSummary from a wallet and its totals.
func Summarize(w Wallet, totals WalletTotals) WalletSummary {
	return WalletSummary{
		ID:             w.ID,
		Month:          w.Month,
		Year:           w.Year,
		BudgetCents:    w.BudgetCents,
		SpentCents:     totals.ExpenseCents,
		RemainingCents: RemainingCents(w.BudgetCents, totals),
		ExpenseCount:   totals.ExpenseCount,
	}
}

// CategoryTotal is one row of the top-categories breakdown.
type CategoryTotal struct {
	Category   Category
	TotalCents int64
	Percentage int
}

// TransactionGroup is a bucket of transactions sharing a date label.
type TransactionGroup struct {
	Label        string
	Transactions []Transaction
}

// HomeView is the aggregate returned for the home screen.
type HomeView struct {
	Wallet            WalletSummary
	TopCategories     []CategoryTotal
	TransactionGroups []TransactionGroup
}

// HistoryEntry is one past (or current) wallet enriched with its totals.
type HistoryEntry struct {
	Wallet         Wallet
	SpentCents     int64
	IncomeCents    int64
	RemainingCents int64
}
