package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"walletd/internal/core"
	"walletd/internal/storage"
)

// envelope is the wire format every endpoint responds with.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(env)
}

func ok(w http.ResponseWriter, data any, message string) {
	if message == "" {
		message = "Success"
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: message})
}

func unauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Unauthorized"
	}
	writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Message: message})
}

func notFound(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Not found"
	}
	writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: message})
}

// respondError maps engine failures onto the envelope: validation
// failures become 400s with their message, missing or foreign records
// become 404s, and everything else is an opaque 500 whose detail is
// echoed only in development mode.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		badRequest(w, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		notFound(w, "Not found")
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			"error", err, "method", r.Method, "url", r.URL.Path)
		env := envelope{Success: false, Message: "Internal server error"}
		if s.dev {
			env.Error = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, env)
	}
}

// respondTransactionError names the missing record for the transaction
// endpoints; everything else falls through to the shared mapping.
func (s *Server) respondTransactionError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		notFound(w, "Transaction not found")
		return
	}
	s.respondError(w, r, err)
}

// View DTOs: cents become decimal units and times become RFC 3339 UTC
// at this boundary only.

type transactionJSON struct {
	ID          int64   `json:"id"`
	WalletID    int64   `json:"walletId"`
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	CreatedAt   string  `json:"createdAt"`
}

type walletSummaryJSON struct {
	ID           int64   `json:"id"`
	Month        int     `json:"month"`
	Year         int     `json:"year"`
	Budget       float64 `json:"budget"`
	Spent        float64 `json:"spent"`
	Remaining    float64 `json:"remaining"`
	ExpenseCount int     `json:"expenseCount"`
}

type categoryTotalJSON struct {
	Category   string  `json:"category"`
	Total      float64 `json:"total"`
	Percentage int     `json:"percentage"`
}

type transactionGroupJSON struct {
	Label        string            `json:"label"`
	Transactions []transactionJSON `json:"transactions"`
}

type homeViewJSON struct {
	Wallet            walletSummaryJSON      `json:"wallet"`
	TopCategories     []categoryTotalJSON    `json:"topCategories"`
	TransactionGroups []transactionGroupJSON `json:"transactionGroups"`
}

type walletJSON struct {
	ID       int64   `json:"id"`
	Month    int     `json:"month"`
	Year     int     `json:"year"`
	Budget   float64 `json:"budget"`
	IsActive bool    `json:"isActive"`
}

type historyEntryJSON struct {
	walletJSON
	Spent     float64 `json:"spent"`
	Remaining float64 `json:"remaining"`
}

func presentTransaction(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:          t.ID,
		WalletID:    t.WalletID,
		Type:        string(t.Kind),
		Amount:      core.Money{Cents: t.AmountCents}.Units(),
		Category:    string(t.Category),
		Description: t.Description,
		Date:        t.Date.UTC().Format(time.RFC3339),
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func presentTransactions(ts []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, len(ts))
	for i, t := range ts {
		out[i] = presentTransaction(t)
	}
	return out
}

func presentHomeView(v core.HomeView) homeViewJSON {
	out := homeViewJSON{
		Wallet: walletSummaryJSON{
			ID:           v.Wallet.ID,
			Month:        v.Wallet.Month,
			Year:         v.Wallet.Year,
			Budget:       core.Money{Cents: v.Wallet.BudgetCents}.Units(),
			Spent:        core.Money{Cents: v.Wallet.SpentCents}.Units(),
			Remaining:    core.Money{Cents: v.Wallet.RemainingCents}.Units(),
			ExpenseCount: v.Wallet.ExpenseCount,
		},
		TopCategories:     make([]categoryTotalJSON, len(v.TopCategories)),
		TransactionGroups: make([]transactionGroupJSON, len(v.TransactionGroups)),
	}
	for i, c := range v.TopCategories {
		out.TopCategories[i] = categoryTotalJSON{
			Category:   string(c.Category),
			Total:      core.Money{Cents: c.TotalCents}.Units(),
			Percentage: c.Percentage,
		}
	}
	for i, g := range v.TransactionGroups {
		out.TransactionGroups[i] = transactionGroupJSON{
			Label:        g.Label,
			Transactions: presentTransactions(g.Transactions),
		}
	}
	return out
}

func presentWallet(w core.Wallet) walletJSON {
	return walletJSON{
		ID:       w.ID,
		Month:    w.Month,
		Year:     w.Year,
		Budget:   core.Money{Cents: w.BudgetCents}.Units(),
		IsActive: w.IsActive,
	}
}

func presentHistory(entries []core.HistoryEntry) []historyEntryJSON {
	out := make([]historyEntryJSON, len(entries))
	for i, e := range entries {
		out[i] = historyEntryJSON{
			walletJSON: presentWallet(e.Wallet),
			Spent:      core.Money{Cents: e.SpentCents}.Units(),
			Remaining:  core.Money{Cents: e.RemainingCents}.Units(),
		}
	}
	return out
}
