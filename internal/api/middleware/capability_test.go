package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func capabilityRouter(capability string, roles []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(
			SetUserContext(c.Request.Context(), "u-1", "t-1", roles),
		)
	})
	router.Use(RequireCapability(capability))
	router.GET("/guarded", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestRequireCapability(t *testing.T) {
	cases := []struct {
		name       string
		capability string
		roles      []string
		want       int
	}{
		{"hr manages policies", CapabilityManagePolicies, []string{"HR_MANAGER"}, http.StatusOK},
		{"director manages policies", CapabilityManagePolicies, []string{"DIRECTOR"}, http.StatusOK},
		{"manager cannot manage policies", CapabilityManagePolicies, []string{"MANAGER"}, http.StatusForbidden},
		{"manager manages delegations", CapabilityManageDelegations, []string{"MANAGER"}, http.StatusOK},
		{"no roles", CapabilityManagePolicies, nil, http.StatusForbidden},
		{"unknown role", CapabilityManagePolicies, []string{"INTERN"}, http.StatusForbidden},
		{"any role suffices", CapabilityManagePolicies, []string{"MANAGER", "HR_MANAGER"}, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := capabilityRouter(tc.capability, tc.roles)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
			router.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}
