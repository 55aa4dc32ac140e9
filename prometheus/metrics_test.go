package prometheus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordAuthzDecision(t *testing.T) {
	denyBefore := testutil.ToFloat64(AuthzDecisionCounter.WithLabelValues("lead", "read", "deny"))
	allowBefore := testutil.ToFloat64(AuthzDecisionCounter.WithLabelValues("lead", "read", "allow"))

	RecordAuthzDecision("lead", "read", false)
	RecordAuthzDecision("lead", "read", true)

	assert.Equal(t, denyBefore+1, testutil.ToFloat64(AuthzDecisionCounter.WithLabelValues("lead", "read", "deny")))
	assert.Equal(t, allowBefore+1, testutil.ToFloat64(AuthzDecisionCounter.WithLabelValues("lead", "read", "allow")))
}

func TestRecordBadgeTransitionOutcomes(t *testing.T) {
	before := testutil.ToFloat64(BadgeTransitionCounter.WithLabelValues("featured", "noop"))

	RecordBadgeTransition("featured", "noop")

	assert.Equal(t, before+1, testutil.ToFloat64(BadgeTransitionCounter.WithLabelValues("featured", "noop")))
}

func TestUpdateActiveDisclosuresSetsGauge(t *testing.T) {
	UpdateActiveDisclosures("promotion", 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(ActiveDisclosuresGauge.WithLabelValues("promotion")))

	UpdateActiveDisclosures("promotion", 0)
	assert.Equal(t, 0.0, testutil.ToFloat64(ActiveDisclosuresGauge.WithLabelValues("promotion")))
}
