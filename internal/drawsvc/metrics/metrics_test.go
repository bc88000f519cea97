package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRoundCommitted(t *testing.T) {
	before := testutil.ToFloat64(roundsCommitted.WithLabelValues("2"))
	RoundCommitted(2)
	assert.Equal(t, before+1, testutil.ToFloat64(roundsCommitted.WithLabelValues("2")))
}

func TestSweep(t *testing.T) {
	processed := testutil.ToFloat64(sweepDraws.WithLabelValues("processed"))
	failed := testutil.ToFloat64(sweepDraws.WithLabelValues("failed"))

	Sweep(20*time.Millisecond, 3, 1, 2)

	assert.Equal(t, processed+3, testutil.ToFloat64(sweepDraws.WithLabelValues("processed")))
	assert.Equal(t, failed+2, testutil.ToFloat64(sweepDraws.WithLabelValues("failed")))
}
