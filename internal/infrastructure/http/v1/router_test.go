package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"explostock/internal/core/apperror"
	"explostock/internal/core/clock"
	"explostock/internal/core/id"
	"explostock/internal/core/types"
	"explostock/internal/domain/auth"
	"explostock/internal/domain/ledger"
	"explostock/internal/domain/storestock"
	"explostock/internal/domain/transactions"
	"explostock/internal/domain/transfer"
	"explostock/internal/domain/warehouse"
	"explostock/internal/infrastructure/http/v1/dto"
	"explostock/internal/infrastructure/http/v1/middleware"
	"explostock/internal/infrastructure/metrics"
	"explostock/internal/infrastructure/storage"
	"explostock/internal/infrastructure/storage/postgres"
	"explostock/pkg/logger"
)

var now = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type testServer struct {
	t       *testing.T
	router  http.Handler
	metrics *metrics.Metrics
	clock   *clock.Fixed
}

func newTestServer(t *testing.T, mutate func(*RouterConfig)) *testServer {
	t.Helper()
	clk := clock.NewFixed(now)
	cfg := RouterConfig{
		Backend: storage.OpenMemory(clk),
		Logger:  logger.NewNop(),
		Metrics: metrics.New(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return &testServer{t: t, router: NewRouter(cfg), metrics: cfg.Metrics, clock: clk}
}

func (s *testServer) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderUserID, "storekeeper")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *testServer) receiveBatch(code string, qty int64) *warehouse.Batch {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/v1/warehouse/batches", map[string]any{
		"code":           code,
		"materialTypeId": id.New().String(),
		"unit":           "kg",
		"quantity":       qty,
		"manufacturedAt": now.AddDate(0, -1, 0),
		"expiresAt":      now.AddDate(1, 0, 0),
		"supplier":       "Nitro Works",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[*warehouse.Batch](s.t, rec)
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/health/info", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"storage":"memory"`)

	rec = s.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "explostock_http_requests_total")
}

func TestRouter_TransferLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	batch := s.receiveBatch("ANFO-001", 1000)
	store := id.New()

	rec := s.do(http.MethodPost, "/api/v1/transfers", map[string]any{
		"batchId":            batch.ID.String(),
		"destinationStoreId": store.String(),
		"quantity":           "400",
		"requiredBy":         now.AddDate(0, 0, 3),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	req := decode[*transfer.Request](t, rec)
	assert.Equal(t, transfer.StatusPending, req.Status)
	assert.Equal(t, "storekeeper", req.RequestedBy)

	rec = s.do(http.MethodGet, "/api/v1/transfers/urgent", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	urgent := decode[dto.ItemsResponse[*transfer.Request]](t, rec)
	assert.Equal(t, 1, urgent.Count)

	base := "/api/v1/transfers/" + req.ID.String()
	rec = s.do(http.MethodPost, base+"/approve", map[string]any{"approvedQuantity": 300})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decode[*transfer.Request](t, rec)
	require.NotNil(t, approved.ApprovedQuantity)
	assert.Equal(t, types.NewQuantity(300), *approved.ApprovedQuantity)

	rec = s.do(http.MethodPost, base+"/dispatch", map[string]any{
		"truckNumber": "KA-01-7781",
		"driverName":  "R. Rao",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, base+"/confirm-delivery", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, base+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decode[*transfer.Request](t, rec)
	assert.Equal(t, transfer.StatusCompleted, done.Status)

	rec = s.do(http.MethodGet, "/api/v1/warehouse/batches/"+batch.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	b := decode[*warehouse.Batch](t, rec)
	assert.Equal(t, types.NewQuantity(700), b.Quantity)
	assert.True(t, b.Allocated.IsZero())

	rec = s.do(http.MethodGet, base+"/ledger", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[dto.ItemsResponse[*ledger.Entry]](t, rec)
	require.Equal(t, 1, entries.Count)
	assert.Equal(t, ledger.TypeTransfer, entries.Items[0].Type)
	assert.Equal(t, types.NewQuantity(300), entries.Items[0].Quantity)

	rec = s.do(http.MethodGet, "/api/v1/transfers/by-number/"+req.Number, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Terminal: any further transition is an invalid state.
	rec = s.do(http.MethodPost, base+"/cancel", map[string]any{"reason": "too late"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	errBody := decode[dto.ErrorResponse](t, rec)
	assert.Equal(t, apperror.CodeInvalidState, errBody.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.CommandsTotal.WithLabelValues("transfer.complete", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.CommandsTotal.WithLabelValues("transfer.cancel", apperror.CodeInvalidState)))
}

func TestRouter_Errors(t *testing.T) {
	s := newTestServer(t, nil)
	batch := s.receiveBatch("PETN-002", 100)

	t.Run("validation details use json names", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/v1/warehouse/batches", map[string]any{"code": "X-1"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decode[dto.ErrorResponse](t, rec)
		assert.Equal(t, apperror.CodeValidation, body.Code)
		fields, ok := body.Details["fields"].(map[string]any)
		require.True(t, ok, rec.Body.String())
		assert.Contains(t, fields, "materialTypeId")
		assert.Contains(t, fields, "expiresAt")
	})

	t.Run("invalid path id", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/v1/warehouse/batches/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not found", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/v1/transfers/"+id.New().String(), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("insufficient quantity", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/v1/warehouse/batches/"+batch.ID.String()+"/allocate", map[string]any{"quantity": 150})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		body := decode[dto.ErrorResponse](t, rec)
		assert.Equal(t, apperror.CodeInsufficientQuantity, body.Code)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/v1/warehouse/batches/"+batch.ID.String()+"/allocate", map[string]any{"quantity": 0})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("quantity out of range", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/v1/warehouse/batches/"+batch.ID.String()+"/allocate",
			map[string]any{"quantity": "1844674407370956.1616"})
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		body := decode[dto.ErrorResponse](t, rec)
		assert.Equal(t, apperror.CodeValidation, body.Code)

		rec = s.do(http.MethodPost, "/api/v1/transactions/stock-in", map[string]any{
			"storeId":        id.New().String(),
			"materialTypeId": id.New().String(),
			"quantity":       "922337203685477.5808",
			"unit":           "kg",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

		rec = s.do(http.MethodGet, "/api/v1/warehouse/batches/"+batch.ID.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decode[*warehouse.Batch](t, rec).Allocated.IsZero())

		rec = s.do(http.MethodGet, "/api/v1/ledger", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 0, decode[dto.ListResponse[*ledger.Entry]](t, rec).TotalCount)
	})

	t.Run("missing user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers", bytes.NewBufferString(
			`{"batchId":"`+batch.ID.String()+`","destinationStoreId":"`+id.New().String()+`","quantity":1}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown status filter", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/api/v1/transfers?status=Lost", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRouter_StoreStocksAndTransactions(t *testing.T) {
	s := newTestServer(t, nil)
	from, to, material := id.New(), id.New(), id.New()

	rec := s.do(http.MethodPost, "/api/v1/transactions/stock-in", map[string]any{
		"storeId":         from.String(),
		"materialTypeId":  material.String(),
		"quantity":        "50.5",
		"unit":            "pcs",
		"referenceNumber": "GRN-7",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	in := decode[*transactions.Result](t, rec)
	assert.Equal(t, types.MustQuantity("50.5"), in.Stock.Quantity)
	require.NotNil(t, in.Entry.ProcessedBy)
	assert.Equal(t, "storekeeper", *in.Entry.ProcessedBy)

	rec = s.do(http.MethodPost, "/api/v1/stores/stocks", map[string]any{
		"storeId":        to.String(),
		"materialTypeId": material.String(),
		"unit":           "pcs",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/v1/stores/stocks", map[string]any{
		"storeId":        to.String(),
		"materialTypeId": material.String(),
		"unit":           "pcs",
	})
	assert.Equal(t, http.StatusConflict, rec.Code, "one row per store and material")

	rec = s.do(http.MethodPost, "/api/v1/transactions/transfer", map[string]any{
		"storeId":        from.String(),
		"materialTypeId": material.String(),
		"toStoreId":      to.String(),
		"quantity":       20,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/v1/transactions/adjustment", map[string]any{
		"storeId":        from.String(),
		"materialTypeId": material.String(),
		"delta":          -100,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/transactions/correction", map[string]any{
		"storeId":        from.String(),
		"materialTypeId": material.String(),
		"newQuantity":    30,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/v1/stores/stocks/lookup?storeId="+from.String()+"&materialTypeId="+material.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decode[*storestock.Stock](t, rec)
	assert.Equal(t, types.NewQuantity(30), st.Quantity)

	rec = s.do(http.MethodPut, "/api/v1/stores/stocks/"+st.ID.String()+"/levels", map[string]any{"minimumLevel": 40})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/v1/stores/stocks/low?storeId="+from.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	low := decode[dto.ItemsResponse[*storestock.Stock]](t, rec)
	assert.Equal(t, 1, low.Count)

	rec = s.do(http.MethodPost, "/api/v1/stores/stocks/"+st.ID.String()+"/reserve", map[string]any{"quantity": 10})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/v1/stores/"+from.String()+"/ledger", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[dto.ListResponse[*ledger.Entry]](t, rec)
	assert.EqualValues(t, 3, page.TotalCount)

	rec = s.do(http.MethodGet, "/api/v1/ledger?type=Transfer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[dto.ListResponse[*ledger.Entry]](t, rec)
	assert.EqualValues(t, 1, page.TotalCount)

	rec = s.do(http.MethodGet, "/api/v1/ledger/"+page.Items[0].ID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Auth(t *testing.T) {
	jwtSvc := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))
	s := newTestServer(t, func(cfg *RouterConfig) {
		cfg.AuthEnabled = true
		cfg.JWTValidator = jwtSvc
	})

	// X-User-ID is not trusted once authentication is on.
	rec := s.do(http.MethodGet, "/api/v1/transfers", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/transfers", nil, "Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, _, err := jwtSvc.GenerateAccessToken("manager-7", "", nil)
	require.NoError(t, err)

	rec = s.do(http.MethodPost, "/api/v1/warehouse/batches", map[string]any{
		"code":           "TNT-003",
		"materialTypeId": id.New().String(),
		"unit":           "kg",
		"quantity":       10,
		"manufacturedAt": now.AddDate(0, -1, 0),
		"expiresAt":      now.AddDate(1, 0, 0),
	}, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	b := decode[*warehouse.Batch](t, rec)
	assert.Equal(t, "manager-7", b.CreatedBy)

	// Health stays public.
	rec = s.do(http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// memoryIdempotency is a map-backed middleware.IdempotencyStore.
type memoryIdempotency struct {
	mu      sync.Mutex
	hashes  map[string]string
	replays map[string]*postgres.IdempotencyReplay
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{
		hashes:  make(map[string]string),
		replays: make(map[string]*postgres.IdempotencyReplay),
	}
}

func (m *memoryIdempotency) AcquireKey(_ context.Context, key, _, _, requestHash string) (*postgres.IdempotencyReplay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hash, ok := m.hashes[key]; ok {
		if hash != requestHash {
			return nil, apperror.NewIdempotencyMismatch(key)
		}
		if r, ok := m.replays[key]; ok {
			return r, nil
		}
		return nil, apperror.NewIdempotencyConflict(key)
	}
	m.hashes[key] = requestHash
	return nil, nil
}

func (m *memoryIdempotency) CompleteKey(_ context.Context, key string, statusCode int, contentType string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replays[key] = &postgres.IdempotencyReplay{StatusCode: statusCode, ContentType: contentType, Body: body}
	return nil
}

func (m *memoryIdempotency) FailKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error {
	return m.CompleteKey(ctx, key, statusCode, contentType, body)
}

func (m *memoryIdempotency) ReleaseKey(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hashes, key)
	return nil
}

func TestRouter_Idempotency(t *testing.T) {
	store := newMemoryIdempotency()
	s := newTestServer(t, func(cfg *RouterConfig) { cfg.Idempotency = store })
	batch := s.receiveBatch("EMUL-004", 600)

	path := "/api/v1/warehouse/batches/" + batch.ID.String() + "/allocate"
	body := map[string]any{"quantity": 100}

	first := s.do(http.MethodPost, path, body, middleware.HeaderIdempotencyKey, "alloc-1")
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	second := s.do(http.MethodPost, path, body, middleware.HeaderIdempotencyKey, "alloc-1")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	// Allocated once, not twice.
	rec := s.do(http.MethodGet, "/api/v1/warehouse/batches/"+batch.ID.String(), nil)
	b := decode[*warehouse.Batch](t, rec)
	assert.Equal(t, types.NewQuantity(100), b.Allocated)

	mismatch := s.do(http.MethodPost, path, map[string]any{"quantity": 5}, middleware.HeaderIdempotencyKey, "alloc-1")
	assert.Equal(t, http.StatusConflict, mismatch.Code)

	// Errors are recorded and replayed too.
	failed := s.do(http.MethodPost, path, map[string]any{"quantity": 1000}, middleware.HeaderIdempotencyKey, "alloc-2")
	require.Equal(t, http.StatusUnprocessableEntity, failed.Code)
	replayed := s.do(http.MethodPost, path, map[string]any{"quantity": 1000}, middleware.HeaderIdempotencyKey, "alloc-2")
	assert.Equal(t, http.StatusUnprocessableEntity, replayed.Code)
	assert.JSONEq(t, failed.Body.String(), replayed.Body.String())
}
