package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordCycle(t *testing.T) {
	before := testutil.ToFloat64(PollCycles.WithLabelValues(ResultOK))
	RecordCycle(ResultOK, 2*time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(PollCycles.WithLabelValues(ResultOK)))
	assert.Greater(t, testutil.ToFloat64(LastCycleTimestamp), 0.0)
}

func TestRecordAlert(t *testing.T) {
	ok := testutil.ToFloat64(AlertsSent.WithLabelValues("isolated", ResultOK))
	failed := testutil.ToFloat64(AlertsSent.WithLabelValues("isolated", ResultError))

	RecordAlert("isolated", nil)
	RecordAlert("isolated", errors.New("boom"))

	assert.Equal(t, ok+1, testutil.ToFloat64(AlertsSent.WithLabelValues("isolated", ResultOK)))
	assert.Equal(t, failed+1, testutil.ToFloat64(AlertsSent.WithLabelValues("isolated", ResultError)))
}

func TestRecordLiquidation(t *testing.T) {
	before := testutil.ToFloat64(LiquidatedNotional.WithLabelValues("BTC"))
	RecordLiquidation("long", map[string]float64{"BTC": 150020})
	assert.Equal(t, before+150020, testutil.ToFloat64(LiquidatedNotional.WithLabelValues("BTC")))
}

func TestSetStreamState(t *testing.T) {
	SetStreamState(2)
	assert.Equal(t, 2.0, testutil.ToFloat64(StreamState))
}
