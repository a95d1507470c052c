package service

import (
	"testing"
	"time"

	"pharmamarket/internal/apperr"
	"pharmamarket/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTransitionLegalEdges(t *testing.T) {
	legal := [][2]string{
		{models.OrderStatusPending, models.OrderStatusProcessing},
		{models.OrderStatusPending, models.OrderStatusCancelled},
		{models.OrderStatusProcessing, models.OrderStatusShipped},
		{models.OrderStatusProcessing, models.OrderStatusCancelled},
		{models.OrderStatusShipped, models.OrderStatusDelivered},
	}

	for _, edge := range legal {
		assert.NoError(t, ValidateTransition(edge[0], edge[1]), "%s -> %s", edge[0], edge[1])
	}
}

func TestValidateTransitionIllegalEdges(t *testing.T) {
	illegal := [][2]string{
		{models.OrderStatusDelivered, models.OrderStatusPending},
		{models.OrderStatusDelivered, models.OrderStatusShipped},
		{models.OrderStatusCancelled, models.OrderStatusPending},
		{models.OrderStatusCancelled, models.OrderStatusProcessing},
		{models.OrderStatusShipped, models.OrderStatusCancelled},
		{models.OrderStatusPending, models.OrderStatusDelivered},
		{models.OrderStatusPending, models.OrderStatusShipped},
		{models.OrderStatusPending, models.OrderStatusPending},
	}

	for _, edge := range illegal {
		err := ValidateTransition(edge[0], edge[1])
		require.Error(t, err, "%s -> %s", edge[0], edge[1])
		assert.True(t, apperr.Is(err, apperr.KindInvalidTransition))

		appErr := apperr.From(err)
		assert.Equal(t, edge[0], appErr.Context["from"])
		assert.Equal(t, edge[1], appErr.Context["to"])
	}
}

func TestCancelDeadline(t *testing.T) {
	window := 120 * time.Minute
	createdAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("uses stored deadline when valid", func(t *testing.T) {
		until := createdAt.Add(window)
		deadline := cancelDeadline(createdAt, until, window)

		assert.True(t, deadline.Equal(until))
		assert.False(t, createdAt.Add(119*time.Minute).After(deadline))
		assert.True(t, createdAt.Add(121*time.Minute).After(deadline))
	})

	t.Run("recomputes legacy deadline at or before created_at", func(t *testing.T) {
		deadline := cancelDeadline(createdAt, createdAt, window)
		assert.True(t, deadline.Equal(createdAt.Add(window)))

		deadline = cancelDeadline(createdAt, createdAt.Add(-time.Hour), window)
		assert.True(t, deadline.Equal(createdAt.Add(window)))
	})
}

func TestValidateSoftDelete(t *testing.T) {
	window := 120 * time.Minute
	createdAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	pharmacy := models.Actor{UserID: 1, Role: models.RolePharmacy}
	warehouse := models.Actor{UserID: 2, Role: models.RoleWarehouse}

	newOrder := func(status string) *models.Order {
		return &models.Order{
			PharmacyID:       1,
			WarehouseID:      2,
			Status:           status,
			CreatedAt:        createdAt,
			CancellableUntil: createdAt.Add(window),
		}
	}

	t.Run("pending inside window", func(t *testing.T) {
		err := validateSoftDelete(newOrder(models.OrderStatusPending), pharmacy, createdAt.Add(time.Hour), window)
		assert.NoError(t, err)
	})

	t.Run("non-pending is rejected as validation, not transition", func(t *testing.T) {
		for _, status := range []string{
			models.OrderStatusProcessing,
			models.OrderStatusShipped,
			models.OrderStatusDelivered,
			models.OrderStatusCancelled,
		} {
			err := validateSoftDelete(newOrder(status), pharmacy, createdAt.Add(time.Hour), window)
			require.Error(t, err, status)
			assert.True(t, apperr.Is(err, apperr.KindValidation), status)
			assert.Equal(t, status, apperr.From(err).Context["order_status"])
		}
	})

	t.Run("pharmacy past window", func(t *testing.T) {
		err := validateSoftDelete(newOrder(models.OrderStatusPending), pharmacy, createdAt.Add(121*time.Minute), window)
		assert.True(t, apperr.Is(err, apperr.KindWindowExpired))
	})

	t.Run("warehouse ignores window", func(t *testing.T) {
		err := validateSoftDelete(newOrder(models.OrderStatusPending), warehouse, createdAt.Add(48*time.Hour), window)
		assert.NoError(t, err)
	})
}

func TestValidateOffer(t *testing.T) {
	assert.NoError(t, validateOffer(&models.Product{BonusBuyQuantity: 2, BonusFreeQuantity: 1}))
	assert.NoError(t, validateOffer(&models.Product{}))

	err := validateOffer(&models.Product{ID: 7, BonusBuyQuantity: 2})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	err = validateOffer(&models.Product{ID: 7, BonusFreeQuantity: 1})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestClampDiscount(t *testing.T) {
	assert.Equal(t, 0.0, clampDiscount(-5))
	assert.Equal(t, 42.5, clampDiscount(42.5))
	assert.Equal(t, 100.0, clampDiscount(150))
}

func TestAuthorizeWarehouse(t *testing.T) {
	order := &models.Order{PharmacyID: 1, WarehouseID: 2}

	assert.NoError(t, authorizeWarehouse(models.Actor{UserID: 2, Role: models.RoleWarehouse}, order))
	assert.NoError(t, authorizeWarehouse(models.Actor{UserID: 9, Role: models.RoleAdmin}, order))

	err := authorizeWarehouse(models.Actor{UserID: 3, Role: models.RoleWarehouse}, order)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	err = authorizeWarehouse(models.Actor{UserID: 1, Role: models.RolePharmacy}, order)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestAuthorizeParty(t *testing.T) {
	order := &models.Order{PharmacyID: 1, WarehouseID: 2}

	assert.NoError(t, authorizeParty(models.Actor{UserID: 1, Role: models.RolePharmacy}, order))
	assert.NoError(t, authorizeParty(models.Actor{UserID: 2, Role: models.RoleWarehouse}, order))
	assert.NoError(t, authorizeParty(models.Actor{UserID: 5, Role: models.RoleAdmin}, order))

	err := authorizeParty(models.Actor{UserID: 2, Role: models.RolePharmacy}, order)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	err = authorizeParty(models.Actor{UserID: 1, Role: "driver"}, order)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}
