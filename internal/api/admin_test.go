package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"chat-companion/backend/ledger/models"
	ledgerservice "chat-companion/backend/ledger/service"
	apperrors "chat-companion/backend/pkg/errors"
	"chat-companion/backend/pkg/jwt"
	"chat-companion/backend/pkg/logger"
)

type stubLedgerRepo struct {
	totals map[int64]int64
}

func (s *stubLedgerRepo) LatestTotal(userID int64, botID uint) (int64, bool, error) {
	total, ok := s.totals[userID]
	return total, ok, nil
}

func (s *stubLedgerRepo) Append(entry *models.Entry) error { return nil }

func (s *stubLedgerRepo) HasEntryOfType(userID int64, botID uint, entryType string) (bool, error) {
	return false, nil
}

type stubPaymentRepo struct{}

func (s *stubPaymentRepo) Create(payment *models.Payment) error { return nil }

func newAdminRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.New(logger.Config{Level: "error"})

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	ledger := ledgerservice.NewService(
		&stubLedgerRepo{totals: map[int64]int64{1: 49}},
		&stubPaymentRepo{},
		50,
		log,
	)
	tokens := jwt.NewService("test-secret", time.Hour)
	admin := NewAdminHandler(ledger, tokens, "admin", string(hash), log)

	router := gin.New()
	router.Use(apperrors.ErrorHandler())
	router.POST("/api/admin/login", admin.Login)
	router.GET("/api/admin/balance/:userID/:botID", admin.AuthRequired(), admin.Balance)
	return router
}

func login(t *testing.T, router *gin.Engine, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(gin.H{"username": username, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAdminLoginIssuesToken(t *testing.T) {
	router := newAdminRouter(t)

	w := login(t, router, "admin", "s3cret")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["token"])
}

func TestAdminLoginRejectsBadPassword(t *testing.T) {
	router := newAdminRouter(t)
	w := login(t, router, "admin", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBalanceRequiresToken(t *testing.T) {
	router := newAdminRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/balance/1/1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBalanceWithToken(t *testing.T) {
	router := newAdminRouter(t)

	w := login(t, router, "admin", "s3cret")
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/balance/1/1", nil)
	req.Header.Set("Authorization", "Bearer "+resp["token"])
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var balance struct {
		Balance int64 `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balance))
	assert.Equal(t, int64(49), balance.Balance)
}
