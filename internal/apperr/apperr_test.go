package apperr

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindFollowsWrapChain(t *testing.T) {
	err := fmt.Errorf("deliver order o-1: %w", QuantityExceeded("remaining %s", "4"))
	assert.Equal(t, "QUANTITY_EXCEEDED", Kind(err))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(err))
	assert.Contains(t, err.Error(), "remaining 4")
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		Validation("bad"):              http.StatusBadRequest,
		InvalidTransition("x"):         http.StatusConflict,
		InsufficientCredit("x"):        http.StatusUnprocessableEntity,
		PermissionDenied("x"):          http.StatusForbidden,
		NotFound("order", "o-1"):       http.StatusNotFound,
		Unauthenticated("no token"):    http.StatusUnauthorized,
		fmt.Errorf("connection reset"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
}
