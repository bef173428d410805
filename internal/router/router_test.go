package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/iliyamo/cardgame-backend/internal/catalog"
	"github.com/iliyamo/cardgame-backend/internal/config"
	"github.com/iliyamo/cardgame-backend/internal/handler"
	"github.com/iliyamo/cardgame-backend/internal/receipt"
	"github.com/iliyamo/cardgame-backend/internal/repository/memory"
	"github.com/iliyamo/cardgame-backend/internal/service"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testConfig() config.Config {
	return config.Config{
		Env:            "test",
		ServiceName:    "Test Game Server",
		StorageBackend: config.BackendMemory,
		SessionBackend: config.BackendMemory,
		SessionTTL:     24 * time.Hour,
		StorageTimeout: time.Second,
		StarterGems:    100,
		MaxBody:        "64K",
		MaxSaveBytes:   16 << 10,
	}
}

type server struct {
	e     *echo.Echo
	clock *testClock
}

func newServer(t *testing.T, cfg config.Config, rdb *redis.Client) *server {
	t.Helper()
	log := zap.NewNop()
	clock := &testClock{t: time.Now().UTC()}
	ids := service.RandomIDs{}

	saveStore := memory.NewSaveStore()
	reg := receipt.NewRegistry()
	reg.Register("android", receipt.Sandbox{})

	identity := service.NewIdentityService(memory.NewUserStore(), ids, log)
	sessions := service.NewSessionManager(memory.NewSessionStore(), ids, cfg.SessionTTL, log)
	sessions.Now = clock.Now
	saves := service.NewSaveService(saveStore, cfg.StarterGems, cfg.MaxSaveBytes, log)
	cat := catalog.Default()
	ledger := service.NewPurchaseLedger(memory.NewPurchaseStore(saveStore), saves, cat, reg, nil, log)

	e := NewEcho(cfg, log)
	RegisterRoutes(e, Handlers{
		Health:   handler.NewHealthHandler(cfg.ServiceName, Endpoints),
		Auth:     handler.NewAuthHandler(identity, sessions, saves, cfg.StorageTimeout),
		Game:     handler.NewGameHandler(sessions, saves, cfg.StorageTimeout),
		Purchase: handler.NewPurchaseHandler(sessions, ledger, saves, cfg.StorageTimeout),
		Products: handler.NewProductHandler(cat),
	}, cfg, rdb, log)
	return &server{e: e, clock: clock}
}

func (s *server) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func assertCORS(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	h := rec.Header()
	assert.Equal(t, []string{"*"}, h.Values("Access-Control-Allow-Origin"))
	assert.Equal(t, "*", h.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "*", h.Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "86400", h.Get("Access-Control-Max-Age"))
	assert.Empty(t, h.Get("Content-Security-Policy"))
}

func login(t *testing.T, s *server, device string) gjson.Result {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/login", map[string]string{"device_id": device})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return gjson.Parse(rec.Body.String())
}

func TestHealth(t *testing.T) {
	s := newServer(t, testConfig(), nil)
	rec := s.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assertCORS(t, rec)
	body := gjson.Parse(rec.Body.String())
	assert.Equal(t, "online", body.Get("status").String())
	assert.Equal(t, "Test Game Server", body.Get("service").String())
	assert.NotEmpty(t, body.Get("timestamp").String())
	assert.Len(t, body.Get("endpoints").Array(), len(Endpoints))
}

func TestUnknownPath(t *testing.T) {
	s := newServer(t, testConfig(), nil)
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := s.do(t, method, "/api/nope", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assertCORS(t, rec)
		body := gjson.Parse(rec.Body.String())
		assert.False(t, body.Get("success").Bool())
		assert.Equal(t, "Endpoint not found", body.Get("error").String())
		assert.Equal(t, "not_found", body.Get("code").String())
		assert.Equal(t, "/api/nope", body.Get("path").String())
	}

	rec := s.do(t, http.MethodGet, "/api/login", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "wrong method is reported as unknown endpoint")
	assert.Equal(t, "/api/login", gjson.Get(rec.Body.String(), "path").String())
}

func TestPreflight(t *testing.T) {
	s := newServer(t, testConfig(), nil)
	for _, path := range []string{"/api/save", "/does/not/exist"} {
		rec := s.do(t, http.MethodOptions, path, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
		assertCORS(t, rec)
	}
}

func TestCORSEchoOrigin(t *testing.T) {
	cfg := testConfig()
	cfg.CORSEchoOrigin = true
	s := newServer(t, cfg, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://game.example")
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	assert.Equal(t, "https://game.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLogin(t *testing.T) {
	s := newServer(t, testConfig(), nil)
	first := login(t, s, "device-a")
	assert.True(t, first.Get("success").Bool())
	assert.Len(t, first.Get("session_id").String(), 64)
	assert.Equal(t, "Player_"+first.Get("user_id").String()[:6], first.Get("username").String())
	assert.EqualValues(t, 100, first.Get("game_data.gems").Int())
	assert.EqualValues(t, 0, first.Get("version").Int())
	assert.NotEmpty(t, first.Get("expires_at").String())

	second := login(t, s, "device-a")
	assert.Equal(t, first.Get("user_id").String(), second.Get("user_id").String())
	assert.NotEqual(t, first.Get("session_id").String(), second.Get("session_id").String())

	for _, body := range []any{map[string]string{}, map[string]string{"device_id": "  "}, "{not json"} {
		rec := s.do(t, http.MethodPost, "/api/login", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "malformed_request", gjson.Get(rec.Body.String(), "code").String())
		assertCORS(t, rec)
	}
}

func TestAuthRequired(t *testing.T) {
	s := newServer(t, testConfig(), nil)
	for _, path := range []string{"/api/save", "/api/load", "/api/purchase", "/api/purchases"} {
		rec := s.do(t, http.MethodPost, path, map[string]any{"session_id": "bogus", "version": 0, "game_data": map[string]int{}})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "unauthorized", gjson.Get(rec.Body.String(), "code").String())
	}
}

func TestSessionExpiryOverHTTP(t *testing.T) {
	s := newServer(t, testConfig(), nil)
	sid := login(t, s, "device-a").Get("session_id").String()

	s.clock.Advance(24*time.Hour + time.Second)
	rec := s.do(t, http.MethodPost, "/api/load", map[string]string{"session_id": sid})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Session expired", gjson.Get(rec.Body.String(), "error").String())
}

func TestScenario(t *testing.T) {
	s := newServer(t, testConfig(), nil)
	sid := login(t, s, "device-a").Get("session_id").String()

	rec := s.do(t, http.MethodPost, "/api/save", map[string]any{"session_id": sid, "version": 0, "game_data": map[string]int{"gems": 150}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, gjson.Get(rec.Body.String(), "new_version").Int())

	rec = s.do(t, http.MethodPost, "/api/save", map[string]any{"session_id": sid, "version": 0, "game_data": map[string]int{"gems": 999}})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "version_conflict", gjson.Get(rec.Body.String(), "code").String())

	rec = s.do(t, http.MethodPost, "/api/load", map[string]string{"session_id": sid})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 150, gjson.Get(rec.Body.String(), "game_data.gems").Int())
	assert.EqualValues(t, 1, gjson.Get(rec.Body.String(), "version").Int())

	purchase := map[string]string{"session_id": sid, "product_id": "gems_50", "transaction_id": "tx-1", "receipt": "r"}
	rec = s.do(t, http.MethodPost, "/api/purchase", purchase)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := gjson.Parse(rec.Body.String())
	assert.False(t, body.Get("replayed").Bool())
	assert.Equal(t, "android", body.Get("platform").String())
	assert.EqualValues(t, 200, body.Get("game_data.gems").Int())

	purchase["product_id"] = "gems_500"
	rec = s.do(t, http.MethodPost, "/api/purchase", purchase)
	require.Equal(t, http.StatusOK, rec.Code)
	body = gjson.Parse(rec.Body.String())
	assert.True(t, body.Get("replayed").Bool())
	assert.Equal(t, "gems_50", body.Get("product_id").String())
	assert.EqualValues(t, 200, body.Get("game_data.gems").Int())

	rec = s.do(t, http.MethodPost, "/api/purchases", map[string]string{"session_id": sid})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, gjson.Get(rec.Body.String(), "purchases").Array(), 1)

	rec = s.do(t, http.MethodPost, "/api/logout", map[string]string{"session_id": sid})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/logout", map[string]string{"session_id": sid})
	require.Equal(t, http.StatusOK, rec.Code, "logout is idempotent")
	rec = s.do(t, http.MethodPost, "/api/load", map[string]string{"session_id": sid})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPurchaseErrors(t *testing.T) {
	s := newServer(t, testConfig(), nil)
	sid := login(t, s, "device-a").Get("session_id").String()

	cases := []struct {
		name   string
		body   map[string]string
		status int
		code   string
	}{
		{"missing transaction", map[string]string{"product_id": "gems_50", "receipt": "r"}, http.StatusBadRequest, "malformed_request"},
		{"unknown product", map[string]string{"product_id": "gems_9000", "transaction_id": "t1", "receipt": "r"}, http.StatusNotFound, "unknown_product"},
		{"empty receipt", map[string]string{"product_id": "gems_50", "transaction_id": "t2"}, http.StatusPaymentRequired, "receipt_invalid"},
		{"unsupported platform", map[string]string{"product_id": "gems_50", "transaction_id": "t3", "receipt": "r", "platform": "web"}, http.StatusPaymentRequired, "receipt_invalid"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.body["session_id"] = sid
			rec := s.do(t, http.MethodPost, "/api/purchase", tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.code, gjson.Get(rec.Body.String(), "code").String())
		})
	}
}

func TestPurchaseRepairsClientDecks(t *testing.T) {
	s := newServer(t, testConfig(), nil)
	sid := login(t, s, "dev-decks").Get("session_id").String()

	rec := s.do(t, http.MethodPost, "/api/save", map[string]any{
		"session_id": sid, "version": 0, "game_data": map[string]any{"gems": 5, "decks": []any{}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/purchase", map[string]any{
		"session_id": sid, "product_id": "premium", "transaction_id": "tx-p", "receipt": "r", "platform": "android",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := gjson.Parse(rec.Body.String())
	assert.True(t, body.Get("game_data.premium_user").Bool())
	assert.False(t, body.Get("game_data.decks.deck2.is_locked").Bool())
	assert.True(t, body.Get("game_data.decks.deck3").IsObject())

	rec = s.do(t, http.MethodPost, "/api/purchases", map[string]string{"session_id": sid})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, gjson.Get(rec.Body.String(), "purchases").Array(), 1)
}

func TestSaveRejectsDuplicateKeys(t *testing.T) {
	s := newServer(t, testConfig(), nil)
	sid := login(t, s, "dev-dup").Get("session_id").String()

	rec := s.do(t, http.MethodPost, "/api/save",
		`{"session_id":"`+sid+`","version":0,"game_data":{"gems":1,"gems":9}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "malformed_request", gjson.Get(rec.Body.String(), "code").String())
}

func TestSaveValidation(t *testing.T) {
	s := newServer(t, testConfig(), nil)
	sid := login(t, s, "device-a").Get("session_id").String()

	for name, body := range map[string]string{
		"missing version": `{"session_id":"` + sid + `","game_data":{}}`,
		"array payload":   `{"session_id":"` + sid + `","version":0,"game_data":[1,2]}`,
		"missing payload": `{"session_id":"` + sid + `","version":0}`,
		"too large":       `{"session_id":"` + sid + `","version":0,"game_data":{"blob":"` + strings.Repeat("a", 20<<10) + `"}}`,
	} {
		rec := s.do(t, http.MethodPost, "/api/save", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestProducts(t *testing.T) {
	s := newServer(t, testConfig(), nil)
	rec := s.do(t, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assertCORS(t, rec)
	products := gjson.Get(rec.Body.String(), "products").Array()
	require.Len(t, products, 5)
	assert.Equal(t, "gems_50", products[0].Get("id").String())
	assert.EqualValues(t, 50, products[0].Get("grant.gems").Int())
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestProductsCache(t *testing.T) {
	cfg := testConfig()
	cfg.Cache = config.CacheConfig{Enabled: true, Methods: []string{"GET"}, TTL: time.Minute, Prefix: "cache", MaxBodyBytes: 1 << 20}
	s := newServer(t, cfg, newRedis(t))

	first := s.do(t, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := s.do(t, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assertCORS(t, second)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour,
		TTL: time.Hour, KeyStrategy: "ip_route", Prefix: "rl",
	}
	s := newServer(t, cfg, newRedis(t))

	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodGet, "/api/products", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := s.do(t, http.MethodGet, "/api/products", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", gjson.Get(rec.Body.String(), "code").String())
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assertCORS(t, rec)

	rec = s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health is outside the limited group")
}

func TestRateLimitKeysOnSessionUser(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{
		Enabled: true, Capacity: 10, RefillTokens: 1, RefillInterval: time.Hour,
		TTL: time.Hour, KeyStrategy: "ip_user", Prefix: "rl", Debug: true,
	}
	s := newServer(t, cfg, newRedis(t))

	rec := s.do(t, http.MethodPost, "/api/login", map[string]string{"device_id": "dev-rl"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rl:ip:192.0.2.1:user:anon", rec.Header().Get("X-RateLimit-Key"))
	body := gjson.Parse(rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/load", map[string]string{"session_id": body.Get("session_id").String()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "rl:ip:192.0.2.1:user:"+body.Get("user_id").String(), rec.Header().Get("X-RateLimit-Key"))
	assert.Equal(t, int64(100), gjson.Get(rec.Body.String(), "game_data.gems").Int(), "handler still reads the body")

	rec = s.do(t, http.MethodPost, "/api/load", map[string]string{"session_id": "bogus"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "rl:ip:192.0.2.1:user:anon", rec.Header().Get("X-RateLimit-Key"))
}

func TestBodyLimit(t *testing.T) {
	s := newServer(t, testConfig(), nil)
	big := `{"device_id":"` + strings.Repeat("a", 70<<10) + `"}`
	rec := s.do(t, http.MethodPost, "/api/login", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assertCORS(t, rec)
}
