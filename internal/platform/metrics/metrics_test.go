package metrics_test

import (
	"errors"
	"testing"

	"github.com/phrazzld/studyguide-api/internal/platform/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveGeneration(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())

	m.ObserveGeneration("generate", 1.5, nil)
	m.ObserveGeneration("generate", 0.2, errors.New("boom"))
	m.ObserveGeneration("replan", 0.3, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationRequests.WithLabelValues("generate", metrics.OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationRequests.WithLabelValues("generate", metrics.OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationRequests.WithLabelValues("replan", metrics.OutcomeSuccess)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.GenerationDuration))
}

func TestNewRegistryGathers(t *testing.T) {
	t.Parallel()

	reg := metrics.NewRegistry()
	m := metrics.New(reg)
	m.GenerationRetries.WithLabelValues("generate").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, family := range families {
		names[family.GetName()] = true
	}
	assert.True(t, names["studyguide_generation_retries_total"])
	assert.True(t, names["go_goroutines"])
}

func TestNewPanicsOnDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics.New(reg)
	assert.Panics(t, func() { metrics.New(reg) })
}
