package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJWTConfig() JWTConfig {
	return JWTConfig{
		SigningKey: []byte("test-signing-key-1234567890123456"),
		Issuer:     "smepp-approvals",
		ExpiresIn:  time.Hour,
	}
}

func TestJWTValidateToken_Success(t *testing.T) {
	cfg := testJWTConfig()

	token, _, err := GenerateToken(cfg, "u-1", "t-1", "alice", []string{"MANAGER"})
	require.NoError(t, err)

	claims, err := cfg.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "t-1", claims.TenantID)
	assert.Equal(t, []string{"MANAGER"}, claims.Roles)
}

func TestJWTValidateToken_RejectsInvalidIssuer(t *testing.T) {
	cfg := testJWTConfig()
	token, _, err := GenerateToken(cfg, "u-1", "t-1", "alice", nil)
	require.NoError(t, err)

	other := cfg
	other.Issuer = "other-issuer"
	_, err = other.ValidateToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestJWTValidateToken_RejectsNoneSigningMethod(t *testing.T) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodNone, JWTClaims{
		UserID:   "u-1",
		TenantID: "t-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "smepp-approvals",
			Subject:   "u-1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = testJWTConfig().ValidateToken(tokenString)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestJWTValidateToken_RejectsMissingTenant(t *testing.T) {
	cfg := testJWTConfig()
	token, _, err := GenerateToken(cfg, "u-1", "", "alice", nil)
	require.NoError(t, err)

	_, err = cfg.ValidateToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidClaims)
}

func TestJWTValidateToken_RequiresSigningKey(t *testing.T) {
	cfg := testJWTConfig()
	token, _, err := GenerateToken(cfg, "u-1", "t-1", "alice", nil)
	require.NoError(t, err)

	_, err = JWTConfig{Issuer: cfg.Issuer}.ValidateToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrJWTSigningKeyMissing)
}

func TestJWTAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testJWTConfig()

	router := gin.New()
	router.Use(JWTAuth(cfg))
	router.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user":   GetUserID(c.Request.Context()),
			"tenant": GetTenantID(c.Request.Context()),
		})
	})

	t.Run("missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Basic abc")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token, _, err := GenerateToken(cfg, "u-7", "t-9", "bob", []string{"HR_MANAGER"})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"tenant":"t-9"`)
	})
}
