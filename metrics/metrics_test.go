package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHelpers(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordSessionStart()
	m.RecordChunk(1000)
	m.RecordChunk(2000)
	m.RecordSessionEnd(3 * time.Second)
	m.RecordUpload(nil)
	m.RecordUpload(errors.New("502"))

	if got := testutil.ToFloat64(m.SessionsStarted); got != 1 {
		t.Errorf("sessions started = %v", got)
	}
	if got := testutil.ToFloat64(m.SessionsActive); got != 0 {
		t.Errorf("sessions active = %v", got)
	}
	if got := testutil.ToFloat64(m.ChunksEmitted); got != 2 {
		t.Errorf("chunks emitted = %v", got)
	}
	if got := testutil.ToFloat64(m.Uploads.WithLabelValues("error")); got != 1 {
		t.Errorf("upload errors = %v", got)
	}
}

func TestSeparateRegistries(t *testing.T) {
	// two registries must not collide on metric names
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
