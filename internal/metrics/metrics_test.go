package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordUpserts(t *testing.T) {
	before := testutil.ToFloat64(UpsertOutcomes.WithLabelValues("versioned"))
	RecordUpserts(3, 2, 1, 0, 4)
	if got := testutil.ToFloat64(UpsertOutcomes.WithLabelValues("versioned")) - before; got != 2 {
		t.Errorf("versioned delta = %v, want 2", got)
	}
}

func TestRecordAction(t *testing.T) {
	c := ActionsApplied.WithLabelValues("move_message", "failed")
	before := testutil.ToFloat64(c)
	RecordAction("move_message", "failed")
	RecordAction("move_message", "failed")
	if got := testutil.ToFloat64(c) - before; got != 2 {
		t.Errorf("failed delta = %v, want 2", got)
	}
}

func TestRecordRun(t *testing.T) {
	RecordRun("fetch", nil, 20*time.Millisecond)
	RecordRun("fetch", errors.New("boom"), time.Second)
	if n := testutil.CollectAndCount(RunDuration); n < 2 {
		t.Errorf("RunDuration series = %d, want at least 2", n)
	}
}
