package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCapability(t *testing.T) {
	okBefore := testutil.ToFloat64(CapabilityRequests.WithLabelValues("obs_test", OutcomeOK))
	badBefore := testutil.ToFloat64(CapabilityRequests.WithLabelValues("obs_test", OutcomeBadRequest))
	histBefore := testutil.CollectAndCount(CapabilityDuration)

	ObserveCapability("obs_test", OutcomeOK, 120*time.Millisecond)
	ObserveCapability("obs_test", OutcomeBadRequest, 0)

	if got := testutil.ToFloat64(CapabilityRequests.WithLabelValues("obs_test", OutcomeOK)) - okBefore; got != 1 {
		t.Fatalf("ok delta=%v", got)
	}
	if got := testutil.ToFloat64(CapabilityRequests.WithLabelValues("obs_test", OutcomeBadRequest)) - badBefore; got != 1 {
		t.Fatalf("bad_request delta=%v", got)
	}
	// Only the timed run creates a histogram series.
	if got := testutil.CollectAndCount(CapabilityDuration) - histBefore; got != 1 {
		t.Fatalf("histogram series delta=%d", got)
	}
}
