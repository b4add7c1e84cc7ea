package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Record(t *testing.T) {
	c := NewCollector("test", prometheus.NewRegistry(), nil)

	c.Record(CallRecord{Provider: "SDAPI_V1", Operation: OpTxt2Img, Status: StatusSuccess, Duration: 1500 * time.Millisecond, Images: 3})
	c.Record(CallRecord{Provider: "SDAPI_V1", Operation: OpTxt2Img, Status: StatusError, Duration: time.Second})

	if got := testutil.ToFloat64(c.requestsTotal.WithLabelValues("SDAPI_V1", OpTxt2Img, StatusSuccess)); got != 1 {
		t.Errorf("success requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.requestsTotal.WithLabelValues("SDAPI_V1", OpTxt2Img, StatusError)); got != 1 {
		t.Errorf("error requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.imagesTotal.WithLabelValues("SDAPI_V1", OpTxt2Img)); got != 3 {
		t.Errorf("images = %v, want 3", got)
	}
	if n := testutil.CollectAndCount(c.requestDuration); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestCollector_Track(t *testing.T) {
	c := NewCollector("test", prometheus.NewRegistry(), nil)

	done := c.track("DALL_E")
	if got := testutil.ToFloat64(c.inFlight.WithLabelValues("DALL_E")); got != 1 {
		t.Errorf("in flight = %v, want 1", got)
	}
	done()
	if got := testutil.ToFloat64(c.inFlight.WithLabelValues("DALL_E")); got != 0 {
		t.Errorf("in flight after done = %v, want 0", got)
	}
}

func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector("dup", reg, nil)

	defer func() {
		if recover() == nil {
			t.Error("second NewCollector on the same registry did not panic")
		}
	}()
	NewCollector("dup", reg, nil)
}
