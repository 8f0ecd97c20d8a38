package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/jipraks/kasirgratisan/internal/backup"
	"github.com/jipraks/kasirgratisan/internal/domain"
	"github.com/jipraks/kasirgratisan/internal/report"
	"github.com/jipraks/kasirgratisan/internal/service"
	"github.com/jipraks/kasirgratisan/internal/store"
)

const (
	maxJSONBody   = 1 << 20
	maxBackupBody = 64 << 20
	maxReportDays = 365
)

type Options struct {
	AllowedOrigin string
	// Metrics is served at /metrics when set.
	Metrics http.Handler
	// LoginAttempts per client per minute; defaults to 5.
	LoginAttempts int
	Now           func() time.Time
}

type API struct {
	service  *service.Service
	exporter *backup.Exporter
	importer *backup.Importer
	auth     *AuthManager
	logger   *slog.Logger
	opts     Options
}

func New(svc *service.Service, auth *AuthManager, logger *slog.Logger, opts Options) *API {
	if opts.LoginAttempts < 1 {
		opts.LoginAttempts = 5
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger = logger.With("component", "httpapi")
	clock := backup.WithClock(opts.Now)
	locker := backup.WithLocker(svc.WriteLock())
	return &API{
		service:  svc,
		exporter: backup.NewExporter(svc.Backend(), svc.Bus(), logger, clock, locker),
		importer: backup.NewImporter(svc.Backend(), svc.Bus(), logger, clock, locker),
		auth:     auth,
		logger:   logger,
		opts:     opts,
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{a.opts.AllowedOrigin},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Manager-PIN"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/healthz", a.handleHealth)
	r.With(httprate.Limit(
		a.opts.LoginAttempts,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		}),
	)).Post("/api/v1/auth/login", a.handleLogin)
	if a.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(a.requireAuth)

		r.Get("/api/v1/products", a.handleProducts)
		r.Get("/api/v1/products/low-stock", a.handleLowStock)
		r.Get("/api/v1/payment-methods", a.handlePaymentMethods)
		r.Get("/api/v1/settings", a.handleSettings)
		r.Post("/api/v1/stock-ins", a.handleStockIn)
		r.Post("/api/v1/stock-outs", a.handleStockOut)
		r.Post("/api/v1/sales", a.handleSale)
		r.Get("/api/v1/transactions", a.handleTransactions)
		r.Get("/api/v1/transactions/{id}", a.handleTransactionDetail)
		r.Get("/api/v1/backup", a.handleExport)
		r.Post("/api/v1/backup/restore", a.handleRestore)
		r.Get("/api/v1/reports/summary", a.handleReport)
	})

	return r
}

func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		session, err := a.auth.ParseToken(strings.TrimSpace(authorization[len("Bearer "):]))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), session)))
	})
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startedAt := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(startedAt),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": a.opts.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.SearchProducts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	threshold := parsePositiveLimit(r.URL.Query().Get("threshold"), 0, 0)
	products, err := a.service.LowStock(r.Context(), threshold)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handlePaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := a.service.PaymentMethods(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"paymentMethods": methods})
}

func (a *API) handleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := a.service.Settings(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	due, err := a.service.BackupDue(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": settings, "backupDue": due})
}

func (a *API) handleStockIn(w http.ResponseWriter, r *http.Request) {
	var req service.ReceiptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := a.service.AddReceipt(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleStockOut(w http.ResponseWriter, r *http.Request) {
	var req service.StockOutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out, err := a.service.RemoveStock(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"stockOut": out})
}

type saleRequest struct {
	Lines    []service.LineRequest `json:"lines"`
	Discount domain.Discount       `json:"discount"`
	service.SaleRequest
}

func (a *API) handleSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cart, err := a.service.FillCart(r.Context(), req.Lines, req.Discount)
	if err != nil {
		a.fail(w, err)
		return
	}
	sale, err := a.service.CommitSale(r.Context(), cart, req.SaleRequest)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

// handleTransactions lists a window of whole days given as from/to dates
// (YYYY-MM-DD, to inclusive). Without parameters it lists today.
func (a *API) handleTransactions(w http.ResponseWriter, r *http.Request) {
	now := a.opts.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	from, err := parseDate(r.URL.Query().Get("from"), today)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("from: %w", err))
		return
	}
	to, err := parseDate(r.URL.Query().Get("to"), from)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("to: %w", err))
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, errors.New("to is before from"))
		return
	}

	txs, err := a.service.Transactions(r.Context(), from, to.AddDate(0, 0, 1))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (a *API) handleTransactionDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, errors.New("invalid transaction id"))
		return
	}
	detail, err := a.service.TransactionDetail(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", backup.FileName(a.opts.Now())))
	if _, err := a.exporter.Export(r.Context(), w); err != nil {
		a.fail(w, err)
	}
}

func (a *API) handleRestore(w http.ResponseWriter, r *http.Request) {
	if !a.auth.ValidateManagerPIN(r.Header.Get("X-Manager-PIN")) {
		writeError(w, http.StatusForbidden, errors.New("manager PIN required"))
		return
	}
	manifest, err := a.importer.Import(r.Context(), http.MaxBytesReader(w, r.Body, maxBackupBody))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"manifest": manifest})
}

func (a *API) handleReport(w http.ResponseWriter, r *http.Request) {
	days := parsePositiveLimit(r.URL.Query().Get("days"), 7, maxReportDays)
	summary, err := a.service.Report(r.Context(), days)
	if err != nil {
		a.fail(w, err)
		return
	}

	if r.URL.Query().Get("format") != "xlsx" {
		writeJSON(w, http.StatusOK, summary)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q",
		fmt.Sprintf("kasirgratisan-laporan-%s.xlsx", a.opts.Now().Format("2006-01-02"))))
	if err := report.WriteXLSX(w, summary); err != nil {
		a.logger.Warn("report workbook failed", "error", err)
	}
}

// fail maps ledger errors onto statuses. A failed restore keeps a fixed
// message telling the operator what state the ledger was left in.
func (a *API) fail(w http.ResponseWriter, err error) {
	var (
		formatErr *backup.FormatError
		writeErr  *backup.WriteError
		fatalErr  *backup.FatalRecoveryError
		maxBytes  *http.MaxBytesError
		status    = http.StatusInternalServerError
	)
	switch {
	case errors.As(err, &fatalErr):
		a.logger.Error("restore failed and previous data could not be put back", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "import failed and previous data could not be restored; restore manually from a backup file",
		})
		return
	case errors.As(err, &writeErr):
		a.logger.Warn("restore rolled back", "error", err)
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "import failed, previous data restored",
		})
		return
	case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrInactiveReference):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &formatErr):
		status = http.StatusBadRequest
	case errors.As(err, &maxBytes):
		status = http.StatusRequestEntityTooLarge
	}
	if status >= 500 {
		a.logger.Error("request failed", "error", err)
	}
	writeError(w, status, err)
}

func parseDate(raw string, fallback time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return time.ParseInLocation("2006-01-02", raw, fallback.Location())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// writeError hides the cause of 5xx responses from the client.
func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
