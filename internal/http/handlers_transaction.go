package http

import (
	"net/http"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondTransactionError(w, r, err)
		return
	}
	input, err := req.toNew()
	if err != nil {
		s.respondTransactionError(w, r, err)
		return
	}

	tx, err := s.transactions.Record(r.Context(), owner, input)
	if err != nil {
		s.respondTransactionError(w, r, err)
		return
	}

	s.invalidateHome(owner)
	ok(w, map[string]any{"transaction": presentTransaction(tx)}, "Transaction added successfully")
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.transactions.List(r.Context(), ownerID(r))
	if err != nil {
		s.respondTransactionError(w, r, err)
		return
	}
	ok(w, map[string]any{"transactions": presentTransactions(txs)}, "Transactions fetched successfully")
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.respondTransactionError(w, r, err)
		return
	}

	tx, err := s.transactions.Get(r.Context(), ownerID(r), id)
	if err != nil {
		s.respondTransactionError(w, r, err)
		return
	}
	ok(w, map[string]any{"transaction": presentTransaction(tx)}, "Transaction fetched successfully")
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)

	id, err := idParam(r)
	if err != nil {
		s.respondTransactionError(w, r, err)
		return
	}

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondTransactionError(w, r, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		s.respondTransactionError(w, r, err)
		return
	}

	tx, err := s.transactions.Update(r.Context(), owner, id, patch)
	if err != nil {
		s.respondTransactionError(w, r, err)
		return
	}

	s.invalidateHome(owner)
	ok(w, map[string]any{"transaction": presentTransaction(tx)}, "Transaction updated successfully")
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(r)

	id, err := idParam(r)
	if err != nil {
		s.respondTransactionError(w, r, err)
		return
	}

	if err := s.transactions.Delete(r.Context(), owner, id); err != nil {
		s.respondTransactionError(w, r, err)
		return
	}

	s.invalidateHome(owner)
	ok(w, nil, "Transaction deleted successfully")
}
