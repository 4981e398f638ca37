package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-registry/internal/catalog"
	"property-registry/internal/cooldown"
	apphttp "property-registry/internal/http"
	"property-registry/internal/repository/memory"
	"property-registry/internal/service"
)

const (
	residentialHash = "QmResidentialRef"
	jwtSecret       = "test-secret"
	registerSecret  = "let-me-in"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()

	store := memory.NewStore()
	// Long cooldown so back-to-back requests inside one test are
	// deterministically throttled.
	tracker := cooldown.NewTracker(3600, 7200)
	cat := catalog.New(residentialHash, "QmCommercialRef", "QmLuxuryRef")
	locks := service.NewLocks()

	registry := service.NewRegistryService(store, tracker, cat, locks, 10, service.HistoryPolicyDropOldest)
	users := service.NewUserService(store, registerSecret, locks)

	logger := logrus.New()
	handler := apphttp.NewHandler(registry, users, nil, "", "", jwtSecret, time.Hour, logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler.RegisterRoutes(router)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func registerAndLogin(t *testing.T, router *gin.Engine, username string) string {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/api/auth/register", "", gin.H{
		"username":        username,
		"password":        "correct-horse",
		"register_secret": registerSecret,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": username,
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestRegisterLoginMint(t *testing.T) {
	router := newRouter(t)
	token := registerAndLogin(t, router, "alice")

	rec := doJSON(t, router, http.MethodPost, "/api/properties", token, gin.H{
		"name":          "Villa",
		"property_type": "Residential",
		"value":         1000,
		"content_hash":  residentialHash,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Property struct {
			ID           string `json:"id"`
			PropertyType string `json:"property_type"`
			Value        uint64 `json:"value"`
		} `json:"property"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Property.ID)
	assert.Equal(t, "Residential", resp.Property.PropertyType)
	assert.Equal(t, uint64(1000), resp.Property.Value)

	// Back-to-back mint is throttled.
	rec = doJSON(t, router, http.MethodPost, "/api/properties", token, gin.H{
		"name":          "Villa 2",
		"property_type": "Residential",
		"value":         1000,
		"content_hash":  residentialHash,
	})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, rec.Body.String())

	// The holding shows up on the profile.
	rec = doJSON(t, router, http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		Properties    []string `json:"properties"`
		PenaltyActive bool     `json:"penalty_active"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, []string{resp.Property.ID}, me.Properties)
	assert.True(t, me.PenaltyActive)
}

func TestMint_RequiresAuth(t *testing.T) {
	router := newRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/properties", "", gin.H{
		"name":          "Villa",
		"property_type": "Residential",
		"value":         1000,
		"content_hash":  residentialHash,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/properties", "not-a-token", gin.H{
		"name":          "Villa",
		"property_type": "Residential",
		"value":         1000,
		"content_hash":  residentialHash,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMint_InvalidMetadata(t *testing.T) {
	router := newRouter(t)
	token := registerAndLogin(t, router, "alice")

	rec := doJSON(t, router, http.MethodPost, "/api/properties", token, gin.H{
		"name":          "Villa",
		"property_type": "Residential",
		"value":         1000,
		"content_hash":  "QmWrong",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestVerifyMetadata_Endpoint(t *testing.T) {
	router := newRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/metadata/verify", "", gin.H{
		"name":          "Villa",
		"property_type": "Residential",
		"value":         1,
		"content_hash":  residentialHash,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valid":true`)

	rec = doJSON(t, router, http.MethodPost, "/api/metadata/verify", "", gin.H{
		"name":          "Villa",
		"property_type": "Residential",
		"value":         1,
		"content_hash":  "QmWrong",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valid":false`)
}

func TestLogin_WrongPassword(t *testing.T) {
	router := newRouter(t)
	registerAndLogin(t, router, "alice")

	rec := doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": "alice",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegister_WrongSecret(t *testing.T) {
	router := newRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/auth/register", "", gin.H{
		"username":        "alice",
		"password":        "correct-horse",
		"register_secret": "nope",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDepositAndMarketEndpoints(t *testing.T) {
	router := newRouter(t)
	sellerToken := registerAndLogin(t, router, "alice")
	buyerToken := registerAndLogin(t, router, "bob")

	rec := doJSON(t, router, http.MethodPost, "/api/properties", sellerToken, gin.H{
		"name":          "Villa",
		"property_type": "Residential",
		"value":         1000,
		"content_hash":  residentialHash,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var minted struct {
		Property struct {
			ID string `json:"id"`
		} `json:"property"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &minted))

	rec = doJSON(t, router, http.MethodPost, "/api/properties/"+minted.Property.ID+"/list", sellerToken, gin.H{"price": 50})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/properties?for_sale=true", buyerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), minted.Property.ID)

	// Buyer cannot afford it yet.
	rec = doJSON(t, router, http.MethodPost, "/api/properties/"+minted.Property.ID+"/buy", buyerToken, nil)
	require.Equal(t, http.StatusPaymentRequired, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/users/me/deposit", buyerToken, gin.H{"amount": 80})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/properties/"+minted.Property.ID+"/buy", buyerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var bought struct {
		OwnerID int64 `json:"owner_id"`
		ForSale bool  `json:"for_sale"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bought))
	assert.False(t, bought.ForSale)

	rec = doJSON(t, router, http.MethodGet, "/api/users/me", buyerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		Balance    uint64   `json:"balance"`
		Properties []string `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, uint64(30), me.Balance)
	assert.Equal(t, []string{minted.Property.ID}, me.Properties)
}
