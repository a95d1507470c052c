package service

import (
	"testing"

	"pharmamarket/internal/apperr"
	"pharmamarket/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateReturnTransitionLegalEdges(t *testing.T) {
	legal := [][2]string{
		{models.ReturnStatusPending, models.ReturnStatusApproved},
		{models.ReturnStatusPending, models.ReturnStatusRejected},
		{models.ReturnStatusApproved, models.ReturnStatusCompleted},
	}

	for _, edge := range legal {
		assert.NoError(t, ValidateReturnTransition(edge[0], edge[1]), "%s -> %s", edge[0], edge[1])
	}
}

func TestValidateReturnTransitionIllegalEdges(t *testing.T) {
	illegal := [][2]string{
		{models.ReturnStatusPending, models.ReturnStatusCompleted},
		{models.ReturnStatusApproved, models.ReturnStatusRejected},
		{models.ReturnStatusRejected, models.ReturnStatusApproved},
		{models.ReturnStatusCompleted, models.ReturnStatusPending},
		{models.ReturnStatusApproved, models.ReturnStatusApproved},
	}

	for _, edge := range illegal {
		err := ValidateReturnTransition(edge[0], edge[1])
		require.Error(t, err, "%s -> %s", edge[0], edge[1])
		assert.True(t, apperr.Is(err, apperr.KindInvalidReturnTransition))
	}
}
