package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_BuildsAllInstruments(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, shutdown, err := New(registry)
	require.NoError(t, err)
	require.NotNil(t, m)
	defer shutdown(context.Background())

	assert.NotNil(t, m.DispatchOutcomesTotal)
	assert.NotNil(t, m.SyncPropagationsTotal)
	assert.NotNil(t, m.TaskRetryAttemptsTotal)
	assert.NotNil(t, m.ActiveMonitorsGauge)
	assert.NotNil(t, m.WebhookRequestDuration)
}

func TestNew_InstrumentsUsableWithoutPanicking(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, shutdown, err := New(registry)
	require.NoError(t, err)
	defer shutdown(context.Background())

	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.DispatchOutcomesTotal.Add(ctx, 1)
		m.SyncPropagationsTotal.Add(ctx, 1)
		m.TaskRetryAttemptsTotal.Add(ctx, 1)
		m.ActiveMonitorsGauge.Add(ctx, 1)
		m.ActiveMonitorsGauge.Add(ctx, -1)
		m.WebhookRequestDuration.Record(ctx, 0.042)
	})
}

func TestNew_TwoInstancesOnDistinctRegistriesDoNotCollide(t *testing.T) {
	m1, shutdown1, err := New(prometheus.NewRegistry())
	require.NoError(t, err)
	defer shutdown1(context.Background())

	m2, shutdown2, err := New(prometheus.NewRegistry())
	require.NoError(t, err)
	defer shutdown2(context.Background())

	assert.NotSame(t, m1, m2)
}
