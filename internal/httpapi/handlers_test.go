package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jipraks/kasirgratisan/internal/domain"
	"github.com/jipraks/kasirgratisan/internal/events"
	"github.com/jipraks/kasirgratisan/internal/metrics"
	"github.com/jipraks/kasirgratisan/internal/seed"
	"github.com/jipraks/kasirgratisan/internal/service"
	"github.com/jipraks/kasirgratisan/internal/store"
	"github.com/jipraks/kasirgratisan/internal/store/memory"
)

var fixedNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

type testServer struct {
	api     *API
	handler http.Handler
	svc     *service.Service
}

// newTestAPI builds the full API over an in-memory ledger seeded with the
// demo catalog, so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *testServer {
	t.Helper()
	return newTestAPIOver(t, memory.New())
}

func newTestAPIOver(t *testing.T, backend store.Backend) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time { return fixedNow }

	bus := events.NewBus(logger)
	svc, err := service.Open(ctx, backend, bus, logger, service.WithClock(clock))
	if err != nil {
		t.Fatalf("open service: %v", err)
	}
	if err := seed.ApplyDemo(ctx, backend, fixedNow); err != nil {
		t.Fatalf("seed demo: %v", err)
	}

	reg := prometheus.NewRegistry()
	metrics.NewCollector(reg).Attach(bus)

	auth := NewAuthManager("test-secret-key-that-is-long-enough", time.Hour, testPIN)
	api := New(svc, auth, logger, Options{
		AllowedOrigin: "http://127.0.0.1:5173",
		Metrics:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Now:           clock,
	})
	return &testServer{api: api, handler: api.Handler(), svc: svc}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		payload, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{PIN: testPIN})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp LoginResponse
	decode(t, rec, &resp)
	return resp.AccessToken
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dest); err != nil {
		t.Fatalf("decode body: %v (body: %s)", err, rec.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestAPI(t)

	rec := srv.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	decode(t, rec, &body)
	if body["ok"] != true || body["at"] != "2026-10-15T09:30:00Z" {
		t.Fatalf("unexpected health body %v", body)
	}
}

func TestHandleLogin(t *testing.T) {
	srv := newTestAPI(t)

	if token := srv.login(t); token == "" {
		t.Fatalf("expected access token")
	}

	rec := srv.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{PIN: "111111"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong PIN, got %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestAPI(t)

	for _, path := range []string{"/api/v1/products", "/api/v1/backup", "/api/v1/reports/summary"} {
		if rec := srv.do(t, http.MethodGet, path, "", nil); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 without token, got %d", path, rec.Code)
		}
		if rec := srv.do(t, http.MethodGet, path, "forged", nil); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 with forged token, got %d", path, rec.Code)
		}
	}
}

func TestHandleProducts(t *testing.T) {
	srv := newTestAPI(t)
	token := srv.login(t)

	var all struct {
		Products []domain.Product `json:"products"`
	}
	rec := srv.do(t, http.MethodGet, "/api/v1/products", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	decode(t, rec, &all)
	if len(all.Products) != 10 {
		t.Fatalf("expected 10 demo products, got %d", len(all.Products))
	}

	var found struct {
		Products []domain.Product `json:"products"`
	}
	rec = srv.do(t, http.MethodGet, "/api/v1/products?q=sku-kopi", token, nil)
	decode(t, rec, &found)
	if len(found.Products) != 1 || found.Products[0].ID != 6 {
		t.Fatalf("expected the coffee product, got %+v", found.Products)
	}

	var low struct {
		Products []domain.Product `json:"products"`
	}
	rec = srv.do(t, http.MethodGet, "/api/v1/products/low-stock", token, nil)
	decode(t, rec, &low)
	if len(low.Products) != 2 || low.Products[0].Stock != 3 {
		t.Fatalf("expected shampoo then tea, got %+v", low.Products)
	}
}

func TestHandleStockInAndOut(t *testing.T) {
	srv := newTestAPI(t)
	token := srv.login(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/stock-ins", token, service.ReceiptRequest{
		ProductID: 10, SupplierID: 1, Quantity: 7, BuyPrice: 3200,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var result service.ReceiptResult
	decode(t, rec, &result)
	if result.Product.Stock != 10 || result.StockIn.TotalPrice != 22400 {
		t.Fatalf("unexpected receipt result %+v", result)
	}

	rec = srv.do(t, http.MethodPost, "/api/v1/stock-ins", token, service.ReceiptRequest{ProductID: 10, SupplierID: 1})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for zero quantity, got %d", rec.Code)
	}

	rec = srv.do(t, http.MethodPost, "/api/v1/stock-outs", token, service.StockOutRequest{
		ProductID: 10, Quantity: 2, Reason: domain.ReasonDamaged,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	p, err := srv.svc.Product(context.Background(), 10)
	if err != nil || p.Stock != 8 {
		t.Fatalf("expected stock 8, got %d (%v)", p.Stock, err)
	}

	rec = srv.do(t, http.MethodPost, "/api/v1/stock-outs", token, service.StockOutRequest{
		ProductID: 10, Quantity: 9, Reason: domain.ReasonLost,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for removing more than in stock, got %d", rec.Code)
	}
}

func saleBody(payment domain.Money) map[string]any {
	return map[string]any{
		"lines": []map[string]any{
			{"productId": 1, "quantity": 2},
			{"productId": 2, "quantity": 1, "discount": map[string]any{"type": "percentage", "value": 10}},
		},
		"discount":        map[string]any{"type": "nominal", "value": 850},
		"paymentMethodId": 1,
		"paymentAmount":   payment,
		"remarks":         "meja 4",
	}
}

func TestHandleSale(t *testing.T) {
	srv := newTestAPI(t)
	token := srv.login(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/sales", token, saleBody(50000))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var sale domain.Sale
	decode(t, rec, &sale)
	tx := sale.Transaction
	if tx.Total != 30000 || tx.Change != 20000 || tx.Profit != 4250 || tx.Remarks != "meja 4" {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if len(sale.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(sale.Items))
	}

	rec = srv.do(t, http.MethodPost, "/api/v1/sales", token, saleBody(20000))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for insufficient payment, got %d", rec.Code)
	}

	rec = srv.do(t, http.MethodPost, "/api/v1/sales", token, map[string]any{
		"lines":           []map[string]any{{"productId": 10, "quantity": 4}},
		"paymentMethodId": 1,
		"paymentAmount":   50000,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for insufficient stock, got %d", rec.Code)
	}
}

func TestHandleTransactions(t *testing.T) {
	srv := newTestAPI(t)
	token := srv.login(t)

	if rec := srv.do(t, http.MethodPost, "/api/v1/sales", token, saleBody(30000)); rec.Code != http.StatusCreated {
		t.Fatalf("sale: expected 201, got %d", rec.Code)
	}

	var list struct {
		Transactions []domain.Transaction `json:"transactions"`
	}
	rec := srv.do(t, http.MethodGet, "/api/v1/transactions", token, nil)
	decode(t, rec, &list)
	if len(list.Transactions) != 1 {
		t.Fatalf("expected today's sale, got %+v", list.Transactions)
	}

	rec = srv.do(t, http.MethodGet, "/api/v1/transactions?from=2026-10-01&to=2026-10-14", token, nil)
	list.Transactions = nil
	decode(t, rec, &list)
	if len(list.Transactions) != 0 {
		t.Fatalf("expected no sales before today, got %+v", list.Transactions)
	}

	if rec := srv.do(t, http.MethodGet, "/api/v1/transactions?from=15-10-2026", token, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed date, got %d", rec.Code)
	}

	rec = srv.do(t, http.MethodGet, "/api/v1/transactions/1", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var detail domain.SaleDetail
	decode(t, rec, &detail)
	if detail.PaymentMethod == nil || detail.PaymentMethod.Name != "Tunai" || len(detail.Products) != 2 {
		t.Fatalf("unexpected detail %+v", detail)
	}

	if rec := srv.do(t, http.MethodGet, "/api/v1/transactions/99", token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown transaction, got %d", rec.Code)
	}
}

func TestHandleBackupRoundTrip(t *testing.T) {
	srv := newTestAPI(t)
	token := srv.login(t)

	rec := srv.do(t, http.MethodGet, "/api/v1/backup", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="kasirgratisan-backup-2026-10-15.json"` {
		t.Fatalf("unexpected content disposition %q", got)
	}
	exported := rec.Body.Bytes()

	if rec := srv.do(t, http.MethodPost, "/api/v1/sales", token, saleBody(30000)); rec.Code != http.StatusCreated {
		t.Fatalf("sale: expected 201, got %d", rec.Code)
	}

	restore := func(pin string, body []byte) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/backup/restore", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Manager-PIN", pin)
		rec := httptest.NewRecorder()
		srv.handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := restore("", exported); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without manager PIN, got %d", rec.Code)
	}
	if rec := restore(testPIN, []byte(`{"version":2}`)); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a backup without data, got %d", rec.Code)
	}

	rec = restore(testPIN, exported)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	txs, err := srv.svc.Transactions(context.Background(), time.Time{}, time.Time{})
	if err != nil || len(txs) != 0 {
		t.Fatalf("expected the sale made after the export to be gone, got %d (%v)", len(txs), err)
	}
}

// failingBulkPut fails bulk writes to products while armed. Each failure
// uses up one of remaining; a negative remaining fails forever.
type failingBulkPut struct {
	store.Backend

	mu        sync.Mutex
	remaining int
}

func (f *failingBulkPut) arm(n int) {
	f.mu.Lock()
	f.remaining = n
	f.mu.Unlock()
}

func (f *failingBulkPut) BulkPut(ctx context.Context, c store.Collection, records []store.Record) error {
	f.mu.Lock()
	fail := c == store.Products && f.remaining != 0
	if fail && f.remaining > 0 {
		f.remaining--
	}
	f.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return f.Backend.BulkPut(ctx, c, records)
}

func TestHandleRestoreFailures(t *testing.T) {
	cases := []struct {
		name    string
		fails   int
		status  int
		message string
	}{
		{"rolled back", 1, http.StatusConflict, "import failed, previous data restored"},
		{"restore also failed", -1, http.StatusInternalServerError, "import failed and previous data could not be restored; restore manually from a backup file"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := &failingBulkPut{Backend: memory.New()}
			srv := newTestAPIOver(t, backend)
			token := srv.login(t)

			rec := srv.do(t, http.MethodGet, "/api/v1/backup", token, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("export: expected 200, got %d", rec.Code)
			}
			exported := rec.Body.Bytes()

			backend.arm(tc.fails)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/backup/restore", bytes.NewReader(exported))
			req.Header.Set("Authorization", "Bearer "+token)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Manager-PIN", testPIN)
			rec = httptest.NewRecorder()
			srv.handler.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d (body: %s)", tc.status, rec.Code, rec.Body.String())
			}
			var body map[string]string
			decode(t, rec, &body)
			if body["error"] != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, body["error"])
			}
			if strings.Contains(rec.Body.String(), "disk full") {
				t.Fatalf("storage detail leaked: %s", rec.Body.String())
			}
		})
	}
}

func TestHandleReport(t *testing.T) {
	srv := newTestAPI(t)
	token := srv.login(t)

	if rec := srv.do(t, http.MethodPost, "/api/v1/sales", token, saleBody(30000)); rec.Code != http.StatusCreated {
		t.Fatalf("sale: expected 201, got %d", rec.Code)
	}

	rec := srv.do(t, http.MethodGet, "/api/v1/reports/summary?days=30", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var summary struct {
		Days         int          `json:"days"`
		Transactions int          `json:"transactions"`
		Sales        domain.Money `json:"sales"`
		HPP          domain.Money `json:"hpp"`
	}
	decode(t, rec, &summary)
	if summary.Days != 30 || summary.Transactions != 1 || summary.Sales != 30000 || summary.HPP != 28400 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	rec = srv.do(t, http.MethodGet, "/api/v1/reports/summary?format=xlsx", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Fatalf("expected a zip container")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestAPI(t)
	token := srv.login(t)

	if rec := srv.do(t, http.MethodPost, "/api/v1/sales", token, saleBody(30000)); rec.Code != http.StatusCreated {
		t.Fatalf("sale: expected 201, got %d", rec.Code)
	}

	rec := srv.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"kasir_sales_total 1", "kasir_sales_amount_rupiah_total 30000", "kasir_units_sold_total 3"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output", want)
		}
	}
}
