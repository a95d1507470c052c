package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"pharmamarket/internal/apperr"
	"pharmamarket/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusForKind(t *testing.T) {
	cases := map[apperr.Kind]int{
		apperr.KindValidation:              http.StatusBadRequest,
		apperr.KindNotFound:                http.StatusNotFound,
		apperr.KindForbidden:               http.StatusForbidden,
		apperr.KindInvalidTransition:       http.StatusConflict,
		apperr.KindInvalidReturnTransition: http.StatusConflict,
		apperr.KindWindowExpired:           http.StatusConflict,
		apperr.KindInvoiceCancelled:        http.StatusConflict,
		apperr.KindAlreadyExists:           http.StatusConflict,
		apperr.KindInsufficientStock:       http.StatusUnprocessableEntity,
		apperr.KindInternal:                http.StatusInternalServerError,
	}

	for kind, want := range cases {
		assert.Equal(t, want, statusForKind(kind), string(kind))
	}
}

func newActorRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(actorMiddleware())
	router.GET("/whoami", func(c *gin.Context) {
		actor := actorFrom(c)
		c.JSON(http.StatusOK, actor)
	})
	return router
}

func TestActorMiddlewareRejectsMissingIdentity(t *testing.T) {
	router := newActorRouter()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestActorMiddlewareRejectsBadUserID(t *testing.T) {
	router := newActorRouter()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-User-ID", "not-a-number")
	req.Header.Set("X-User-Role", models.RolePharmacy)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestActorMiddlewarePassesIdentity(t *testing.T) {
	router := newActorRouter()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-User-ID", "42")
	req.Header.Set("X-User-Role", models.RoleWarehouse)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":42,"role":"warehouse"}`, w.Body.String())
}

func TestWriteErrorShape(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/boom", func(c *gin.Context) {
		writeError(c, apperr.InsufficientStock(7, 3))
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{
		"error": {
			"kind": "insufficient_stock",
			"message": "insufficient stock for product 7",
			"context": {"product_id": 7, "requested": 3}
		}
	}`, w.Body.String())
}
