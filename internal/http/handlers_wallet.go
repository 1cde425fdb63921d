package http

import (
	"net/http"

	"walletd/internal/core"
)

// handleHomeView returns the owner's active wallet with totals, top
// spending categories and date-grouped transactions. Results are served
// from the cache when a fresh copy exists.
func (s *Server) handleHomeView(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)

	if view, found := s.cachedHomeView(owner); found {
		ok(w, view, "Home data fetched successfully")
		return
	}

	view, err := s.wallets.HomeView(r.Context(), owner)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	payload := presentHomeView(view)
	s.storeHomeView(owner, payload)
	ok(w, payload, "Home data fetched successfully")
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)

	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.Budget == nil || *req.Budget < 0 {
		badRequest(w, "Valid budget is required")
		return
	}

	wallet, err := s.wallets.UpdateBudget(r.Context(), owner, core.CentsFromUnits(*req.Budget))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.invalidateHome(owner)
	ok(w, map[string]any{"wallet": presentWallet(wallet)}, "Budget updated successfully")
}

func (s *Server) handleWalletHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.wallets.History(r.Context(), ownerID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	ok(w, map[string]any{"wallets": presentHistory(entries)}, "Wallet history fetched successfully")
}
