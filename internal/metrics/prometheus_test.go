package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := New()
	r.RecordRequest("openai", "gpt-4", "success", 0.4)
	r.RecordRequest("openai", "gpt-4", "success", 0.6)
	r.RecordError("openai", "rate_limit")
	r.RecordScore("AAPL", 71.5)
	r.RecordCacheLookup(true)
	r.RecordCacheLookup(false)
	r.RecordCacheLookup(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.requestsTotal.WithLabelValues("openai", "gpt-4", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("openai", "rate_limit")))
	assert.Equal(t, 71.5, testutil.ToFloat64(r.compositeScore.WithLabelValues("AAPL")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.latency))
}

func TestRecordersAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.RecordError("deepseek", "afc")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.errorsTotal.WithLabelValues("deepseek", "afc")))
}
