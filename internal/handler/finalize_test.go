package handler

import (
    "net/http"
    "testing"

    "github.com/stretchr/testify/assert"

    "github.com/novinclub/benefits-server/internal/finalize"
)

func TestStatusForMapsEveryKind(t *testing.T) {
    cases := []struct {
        kind finalize.Kind
        want int
    }{
        {finalize.KindNotFound, http.StatusNotFound},
        {finalize.KindPrecondition, http.StatusUnprocessableEntity},
        {finalize.KindFraudMismatch, http.StatusUnprocessableEntity},
        {finalize.KindPricingUnresolved, http.StatusUnprocessableEntity},
        {finalize.KindCapacityExceeded, http.StatusConflict},
        {finalize.KindConflict, http.StatusConflict},
        {finalize.KindBillingFailed, http.StatusBadGateway},
        {finalize.KindUnexpected, http.StatusInternalServerError},
    }
    for _, tc := range cases {
        assert.Equal(t, tc.want, statusFor(tc.kind), tc.kind.String())
    }
}
