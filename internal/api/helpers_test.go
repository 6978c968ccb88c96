package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bingo-room-backend/config"
	"bingo-room-backend/internal/db"
	"bingo-room-backend/internal/game"
	"bingo-room-backend/internal/identity"
	"bingo-room-backend/internal/store"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	ids    *identity.Provider
	db     *gorm.DB
}

type serverOptions struct {
	game    game.Options
	withDB  bool
	webpush *webpush.Options
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemoryStore()
	require.NoError(t, st.Start(context.Background()))
	svc := game.NewService(st, opts.game)

	ids, err := identity.NewProvider("test-secret", "bingo-test", time.Hour)
	require.NoError(t, err)

	var gdb *gorm.DB
	if opts.withDB {
		dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
		gdb, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		require.NoError(t, err)
		sqlDB, err := gdb.DB()
		require.NoError(t, err)
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { sqlDB.Close() })
		require.NoError(t, db.Migrate(gdb))
	}

	h := NewHandler(svc, ids, gdb, opts.webpush, nil)
	router := NewRouter(h, config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000})
	return &testServer{t: t, router: router, ids: ids, db: gdb}
}

// token mints a token for a fixed identity.
func (s *testServer) token(id string) string {
	s.t.Helper()
	ident, err := s.ids.Refresh(id)
	require.NoError(s.t, err)
	return ident.Token
}

func (s *testServer) do(method, path, caller string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(caller))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type roomResponse struct {
	ID             string `json:"id"`
	Code           string `json:"code"`
	HostID         string `json:"hostId"`
	CreatedAt      int64  `json:"createdAt"`
	MaxNumber      int    `json:"maxNumber"`
	DrawnNumbers   []int  `json:"drawnNumbers"`
	CurrentMode    string `json:"currentMode"`
	LastNumber     *int   `json:"lastNumber"`
	PreviousNumber *int   `json:"previousNumber"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (s *testServer) createRoom(host string, body any) roomResponse {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/rooms", host, body)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[roomResponse](s.t, w)
}
