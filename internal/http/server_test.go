package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"walletd/internal/config"
	"walletd/internal/services"
	"walletd/internal/storage"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "walletd.db"))
	if err != nil {
		t.Fatalf("creating repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	wallets := services.NewWalletService(repo, time.Now)
	transactions := services.NewTransactionService(repo, wallets, time.Now)

	cfg := &config.Config{
		Port:              "8081",
		JWTSecret:         testSecret,
		AppEnv:            config.EnvDevelopment,
		RequestsPerMinute: 60,
		HomeCacheTTL:      0, // deterministic responses in tests
	}
	srv, err := NewServer(cfg, wallets, transactions)
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}
	return srv
}

func signToken(t *testing.T, ownerID int64) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": float64(ownerID),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func doRequest(t *testing.T, srv *Server, method, path, token string, body any) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	var env testEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding envelope from %q: %v", rec.Body.String(), err)
	}
	return rec, env
}

func unmarshalData(t *testing.T, env testEnvelope, v any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decoding data %q: %v", string(env.Data), err)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec, env := doRequest(t, srv, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("healthz: got %d %v", rec.Code, env)
	}

	rec, env = doRequest(t, srv, http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("readyz: got %d %v", rec.Code, env)
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	rec, env := doRequest(t, srv, http.MethodGet, "/api/wallet", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if env.Success {
		t.Fatal("expected success=false")
	}

	badToken := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": float64(1)})
	signed, _ := badToken.SignedString([]byte("wrong-secret"))
	rec, _ = doRequest(t, srv, http.MethodGet, "/api/wallet", signed, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", rec.Code)
	}
}

func TestHomeViewEmptyWallet(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, 1)

	rec, env := doRequest(t, srv, http.MethodGet, "/api/wallet", token, nil)
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("got %d %v", rec.Code, env)
	}

	var view homeViewJSON
	unmarshalData(t, env, &view)
	if view.Wallet.Budget != 1000 {
		t.Fatalf("expected default budget 1000, got %v", view.Wallet.Budget)
	}
	if view.Wallet.Remaining != 1000 {
		t.Fatalf("expected remaining 1000, got %v", view.Wallet.Remaining)
	}
	if len(view.TopCategories) != 0 || len(view.TransactionGroups) != 0 {
		t.Fatalf("expected empty aggregates, got %+v", view)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, 1)

	rec, env := doRequest(t, srv, http.MethodPost, "/api/transactions", token, map[string]any{
		"type":        "expense",
		"amount":      12.5,
		"category":    "food",
		"description": "lunch",
	})
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("create: got %d %v", rec.Code, env)
	}
	var created struct {
		Transaction transactionJSON `json:"transaction"`
	}
	unmarshalData(t, env, &created)
	if created.Transaction.ID == 0 {
		t.Fatal("expected assigned id")
	}
	if created.Transaction.Amount != 12.5 {
		t.Fatalf("expected amount 12.5, got %v", created.Transaction.Amount)
	}
	if created.Transaction.Date == "" {
		t.Fatal("expected a defaulted date")
	}

	id := created.Transaction.ID

	_, env = doRequest(t, srv, http.MethodGet, "/api/transactions", token, nil)
	var listed struct {
		Transactions []transactionJSON `json:"transactions"`
	}
	unmarshalData(t, env, &listed)
	if len(listed.Transactions) != 1 || listed.Transactions[0].ID != id {
		t.Fatalf("unexpected list %+v", listed)
	}

	rec, env = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/api/transactions/%d", id), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: got %d", rec.Code)
	}

	rec, env = doRequest(t, srv, http.MethodPut, fmt.Sprintf("/api/transactions/%d", id), token, map[string]any{
		"description": "team lunch",
		"amount":      20.0,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: got %d %v", rec.Code, env)
	}
	var updated struct {
		Transaction transactionJSON `json:"transaction"`
	}
	unmarshalData(t, env, &updated)
	if updated.Transaction.Description != "team lunch" || updated.Transaction.Amount != 20 {
		t.Fatalf("unexpected update result %+v", updated.Transaction)
	}
	if updated.Transaction.Category != "food" {
		t.Fatalf("category should be unchanged, got %q", updated.Transaction.Category)
	}

	rec, _ = doRequest(t, srv, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", id), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: got %d", rec.Code)
	}

	rec, env = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/api/transactions/%d", id), token, nil)
	if rec.Code != http.StatusNotFound || env.Success {
		t.Fatalf("expected 404 after delete, got %d %v", rec.Code, env)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, 1)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing type", map[string]any{"amount": 5.0, "category": "food"}},
		{"bad type", map[string]any{"type": "transfer", "amount": 5.0, "category": "food"}},
		{"zero amount", map[string]any{"type": "expense", "amount": 0.0, "category": "food"}},
		{"negative amount", map[string]any{"type": "expense", "amount": -3.0, "category": "food"}},
		{"unknown category", map[string]any{"type": "expense", "amount": 5.0, "category": "yachts"}},
		{"bad date", map[string]any{"type": "expense", "amount": 5.0, "category": "food", "date": "not-a-date"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := doRequest(t, srv, http.MethodPost, "/api/transactions", token, tc.body)
			if rec.Code != http.StatusBadRequest || env.Success {
				t.Fatalf("got %d %v", rec.Code, env)
			}
		})
	}
}

func TestOwnershipIsolation(t *testing.T) {
	srv := newTestServer(t)
	owner := signToken(t, 1)
	stranger := signToken(t, 2)

	_, env := doRequest(t, srv, http.MethodPost, "/api/transactions", owner, map[string]any{
		"type": "expense", "amount": 9.0, "category": "gas",
	})
	var created struct {
		Transaction transactionJSON `json:"transaction"`
	}
	unmarshalData(t, env, &created)

	path := fmt.Sprintf("/api/transactions/%d", created.Transaction.ID)

	rec, _ := doRequest(t, srv, http.MethodGet, path, stranger, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("stranger get: expected 404, got %d", rec.Code)
	}
	rec, _ = doRequest(t, srv, http.MethodPut, path, stranger, map[string]any{"amount": 1.0})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("stranger update: expected 404, got %d", rec.Code)
	}
	rec, _ = doRequest(t, srv, http.MethodDelete, path, stranger, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("stranger delete: expected 404, got %d", rec.Code)
	}

	// Owner can still see it afterwards.
	rec, _ = doRequest(t, srv, http.MethodGet, path, owner, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner get: expected 200, got %d", rec.Code)
	}
}

func TestUpdateBudget(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, 1)

	rec, env := doRequest(t, srv, http.MethodPut, "/api/wallet/budget", token, map[string]any{"budget": 750.5})
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("got %d %v", rec.Code, env)
	}
	var resp struct {
		Wallet walletJSON `json:"wallet"`
	}
	unmarshalData(t, env, &resp)
	if resp.Wallet.Budget != 750.5 {
		t.Fatalf("expected budget 750.5, got %v", resp.Wallet.Budget)
	}
	if !resp.Wallet.IsActive {
		t.Fatal("expected active wallet")
	}

	_, env = doRequest(t, srv, http.MethodGet, "/api/wallet", token, nil)
	var view homeViewJSON
	unmarshalData(t, env, &view)
	if view.Wallet.Budget != 750.5 {
		t.Fatalf("home view should reflect new budget, got %v", view.Wallet.Budget)
	}

	rec, _ = doRequest(t, srv, http.MethodPut, "/api/wallet/budget", token, map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing budget: expected 400, got %d", rec.Code)
	}
	rec, _ = doRequest(t, srv, http.MethodPut, "/api/wallet/budget", token, map[string]any{"budget": -1.0})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("negative budget: expected 400, got %d", rec.Code)
	}
}

func TestWalletHistory(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, 1)

	doRequest(t, srv, http.MethodPost, "/api/transactions", token, map[string]any{
		"type": "expense", "amount": 40.0, "category": "bills",
	})
	doRequest(t, srv, http.MethodPost, "/api/transactions", token, map[string]any{
		"type": "income", "amount": 15.0, "category": "other",
	})

	rec, env := doRequest(t, srv, http.MethodGet, "/api/wallet/history", token, nil)
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("got %d %v", rec.Code, env)
	}
	var resp struct {
		Wallets []historyEntryJSON `json:"wallets"`
	}
	unmarshalData(t, env, &resp)
	if len(resp.Wallets) != 1 {
		t.Fatalf("expected 1 wallet, got %d", len(resp.Wallets))
	}
	entry := resp.Wallets[0]
	if entry.Spent != 40 {
		t.Fatalf("expected spent 40, got %v", entry.Spent)
	}
	if entry.Remaining != 1000-40+15 {
		t.Fatalf("expected remaining 975, got %v", entry.Remaining)
	}
}

func TestHomeViewReflectsActivity(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, 1)

	doRequest(t, srv, http.MethodGet, "/api/wallet", token, nil)

	doRequest(t, srv, http.MethodPost, "/api/transactions", token, map[string]any{
		"type": "expense", "amount": 60.0, "category": "food",
	})
	doRequest(t, srv, http.MethodPost, "/api/transactions", token, map[string]any{
		"type": "expense", "amount": 40.0, "category": "gas",
	})

	_, env := doRequest(t, srv, http.MethodGet, "/api/wallet", token, nil)
	var view homeViewJSON
	unmarshalData(t, env, &view)

	if view.Wallet.Spent != 100 {
		t.Fatalf("expected spent 100, got %v", view.Wallet.Spent)
	}
	if view.Wallet.ExpenseCount != 2 {
		t.Fatalf("expected 2 expenses, got %d", view.Wallet.ExpenseCount)
	}
	if len(view.TopCategories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(view.TopCategories))
	}
	if view.TopCategories[0].Category != "food" || view.TopCategories[0].Percentage != 60 {
		t.Fatalf("unexpected top category %+v", view.TopCategories[0])
	}
	if len(view.TransactionGroups) != 1 || view.TransactionGroups[0].Label != "TODAY" {
		t.Fatalf("unexpected groups %+v", view.TransactionGroups)
	}
	if len(view.TransactionGroups[0].Transactions) != 2 {
		t.Fatalf("expected 2 grouped transactions, got %d", len(view.TransactionGroups[0].Transactions))
	}
}

func TestMutationRateLimit(t *testing.T) {
	srv := newTestServer(t)
	srv.limiter = newRateLimiter(2)
	token := signToken(t, 1)

	body := map[string]any{"type": "expense", "amount": 1.0, "category": "coffee"}
	for i := 0; i < 2; i++ {
		rec, _ := doRequest(t, srv, http.MethodPost, "/api/transactions", token, body)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i+1, rec.Code)
		}
	}
	rec, env := doRequest(t, srv, http.MethodPost, "/api/transactions", token, body)
	if rec.Code != http.StatusTooManyRequests || env.Success {
		t.Fatalf("expected 429, got %d %v", rec.Code, env)
	}

	// Reads are never throttled.
	rec, _ = doRequest(t, srv, http.MethodGet, "/api/wallet", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("read after limit: got %d", rec.Code)
	}
}

func TestInvalidIDParam(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, 1)

	rec, _ := doRequest(t, srv, http.MethodGet, "/api/transactions/abc", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec, env := doRequest(t, srv, http.MethodGet, "/api/transactions/999", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if env.Message != "Transaction not found" {
		t.Fatalf("expected transaction-specific message, got %q", env.Message)
	}
}

// stepClock is a hand-advanced clock shared by the services and the
// server so cache keys and period resolution move together.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newCachingTestServer(t *testing.T, clock *stepClock) *Server {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "walletd.db"))
	if err != nil {
		t.Fatalf("creating repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	wallets := services.NewWalletService(repo, clock.Now)
	transactions := services.NewTransactionService(repo, wallets, clock.Now)

	cfg := &config.Config{
		Port:              "8081",
		JWTSecret:         testSecret,
		AppEnv:            config.EnvDevelopment,
		RequestsPerMinute: 60,
		HomeCacheTTL:      time.Minute,
	}
	srv, err := NewServer(cfg, wallets, transactions)
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}
	srv.now = clock.Now
	return srv
}

func TestHomeViewCacheInvalidatedOnMutation(t *testing.T) {
	clock := &stepClock{now: time.Date(2025, 12, 27, 10, 0, 0, 0, time.UTC)}
	srv := newCachingTestServer(t, clock)
	token := signToken(t, 1)

	doRequest(t, srv, http.MethodGet, "/api/wallet", token, nil)
	srv.homeCache.Wait() // buffered sets land asynchronously
	if _, found := srv.cachedHomeView(1); !found {
		t.Fatal("expected home view to be cached after first fetch")
	}

	doRequest(t, srv, http.MethodPost, "/api/transactions", token, map[string]any{
		"type": "expense", "amount": 25.0, "category": "food",
	})

	_, env := doRequest(t, srv, http.MethodGet, "/api/wallet", token, nil)
	var view homeViewJSON
	unmarshalData(t, env, &view)
	if view.Wallet.Spent != 25 {
		t.Fatalf("expected spent 25 after invalidation, got %v", view.Wallet.Spent)
	}
}

func TestHomeViewCacheScopedToPeriod(t *testing.T) {
	clock := &stepClock{now: time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC)}
	srv := newCachingTestServer(t, clock)
	token := signToken(t, 1)

	doRequest(t, srv, http.MethodPost, "/api/transactions", token, map[string]any{
		"type": "expense", "amount": 10.0, "category": "gas",
	})
	_, env := doRequest(t, srv, http.MethodGet, "/api/wallet", token, nil)
	var view homeViewJSON
	unmarshalData(t, env, &view)
	if view.Wallet.Month != 12 || view.Wallet.Spent != 10 {
		t.Fatalf("unexpected december view %+v", view.Wallet)
	}
	srv.homeCache.Wait()

	// The entry cached moments before midnight must not survive into
	// January: the key carries the period.
	clock.Set(time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC))

	if _, found := srv.cachedHomeView(1); found {
		t.Fatal("december entry served under the january key")
	}

	_, env = doRequest(t, srv, http.MethodGet, "/api/wallet", token, nil)
	unmarshalData(t, env, &view)
	if view.Wallet.Month != 1 || view.Wallet.Year != 2026 {
		t.Fatalf("expected january wallet, got %+v", view.Wallet)
	}
	if view.Wallet.Spent != 0 {
		t.Fatalf("expected fresh period with no spend, got %v", view.Wallet.Spent)
	}
}
