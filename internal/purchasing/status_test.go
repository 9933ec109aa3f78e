package purchasing

import (
	"testing"

	"tienda-backend/internal/apperr"
	"tienda-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestTransitionTable(t *testing.T) {
	const (
		q  = models.OrderStatusQuoting
		p  = models.OrderStatusPaid
		it = models.OrderStatusInTransit
		r  = models.OrderStatusReceived
		c  = models.OrderStatusCancelled
	)
	cases := []struct {
		from, to models.OrderStatus
		ok       bool
	}{
		{q, p, true},
		{q, it, true},
		{q, r, true},
		{p, it, true},
		{it, r, true},
		{q, c, true},
		{it, c, true},
		{q, q, true},
		{r, r, true},
		{c, c, true},
		{p, q, false},
		{r, it, false},
		{it, p, false},
		{r, c, false},
		{c, q, false},
		{c, r, false},
		{q, "shipped", false},
	}
	for _, tc := range cases {
		err := Transition(tc.from, tc.to)
		if tc.ok {
			assert.NoError(t, err, "%s -> %s", tc.from, tc.to)
		} else {
			assert.True(t, apperr.Is(err, apperr.KindValidation), "%s -> %s", tc.from, tc.to)
		}
	}
}
