package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestResultLabel(t *testing.T) {
	if got := ResultLabel(nil); got != "ok" {
		t.Errorf("ResultLabel(nil) = %q, want %q", got, "ok")
	}
	if got := ResultLabel(errors.New("boom")); got != "error" {
		t.Errorf("ResultLabel(err) = %q, want %q", got, "error")
	}
}

func TestPointsLogged_Increments(t *testing.T) {
	c := PointsLogged.WithLabelValues("myWinner")
	before := testutil.ToFloat64(c)
	c.Inc()
	if got := testutil.ToFloat64(c); got != before+1 {
		t.Errorf("PointsLogged = %v, want %v", got, before+1)
	}
}

func TestSyncQueueDepth_Gauge(t *testing.T) {
	SyncQueueDepth.Set(3)
	if got := testutil.ToFloat64(SyncQueueDepth); got != 3 {
		t.Errorf("SyncQueueDepth = %v, want 3", got)
	}
	SyncQueueDepth.Set(0)
}
