package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"walletd/internal/core"
)

const maxBodyBytes = 1 << 20

// transactionRequest is the body shared by the create and update
// endpoints. Pointers distinguish "absent" from "present but empty".
type transactionRequest struct {
	Type        string   `json:"type"`
	Amount      *float64 `json:"amount"`
	Category    string   `json:"category"`
	Description *string  `json:"description"`
	Date        string   `json:"date"`
}

type budgetRequest struct {
	Budget *float64 `json:"budget"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body", core.ErrInvalidInput)
	}
	return nil
}

// parseDate accepts RFC 3339 timestamps and bare calendar dates. An
// empty string maps to the zero time, which downstream means "now".
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, core.ErrInvalidDate
}

func (tr transactionRequest) toNew() (core.NewTransaction, error) {
	date, err := parseDate(tr.Date)
	if err != nil {
		return core.NewTransaction{}, err
	}
	n := core.NewTransaction{
		Kind:     core.TransactionKind(tr.Type),
		Category: core.Category(tr.Category),
		Date:     date,
	}
	if tr.Amount != nil {
		n.AmountCents = core.CentsFromUnits(*tr.Amount)
	}
	if tr.Description != nil {
		n.Description = *tr.Description
	}
	return n, nil
}

func (tr transactionRequest) toPatch() (core.TransactionPatch, error) {
	date, err := parseDate(tr.Date)
	if err != nil {
		return core.TransactionPatch{}, err
	}
	p := core.TransactionPatch{
		Kind:        core.TransactionKind(tr.Type),
		Category:    core.Category(tr.Category),
		Description: tr.Description,
		Date:        date,
	}
	if tr.Amount != nil {
		p.AmountCents = core.CentsFromUnits(*tr.Amount)
	}
	return p, nil
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: valid transaction id is required", core.ErrInvalidInput)
	}
	return id, nil
}
