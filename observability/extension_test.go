package observability_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/treasury"
	"github.com/xraph/treasury/gateway"
	"github.com/xraph/treasury/observability"
	"github.com/xraph/treasury/store/memory"
	"github.com/xraph/treasury/types"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.Metric, len(families))
	for _, mf := range families {
		require.Len(t, mf.GetMetric(), 1)
		out[mf.GetName()] = mf.GetMetric()[0]
	}
	return out
}

func TestMetricsFromEngine(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))

	rejectBob := gateway.Func(func(_ context.Context, _, to string, _ types.Amount) (gateway.Receipt, error) {
		if to == "bob" {
			return gateway.Receipt{}, errors.New("rejected")
		}
		return gateway.Receipt{BlockHeight: 1}, nil
	})
	eng := treasury.New(memory.New(),
		treasury.WithReconcileSchedule(""),
		treasury.WithGateway(rejectBob),
		treasury.WithPlugin(metrics),
	)

	_, _, err := eng.AddTokenBalance(ctx, "alice", types.NewAmount(100))
	require.NoError(t, err)
	_, _, err = eng.Stack(ctx, "alice", types.NewAmount(10))
	require.NoError(t, err)
	_, _, err = eng.Stack(ctx, "alice", types.NewAmount(1000))
	require.Error(t, err)
	_, _, err = eng.Transfer(ctx, "alice", "bob", types.NewAmount(5))
	require.Error(t, err)
	_, err = eng.BatchTransfer(ctx, "alice", []treasury.TransferLeg{
		{To: "carol", Amount: types.NewAmount(1)},
		{To: "bob", Amount: types.NewAmount(1)},
	})
	require.Error(t, err)

	got := gather(t, reg)
	counter := func(name string) float64 {
		m, ok := got[name]
		require.True(t, ok, name)
		return m.GetCounter().GetValue()
	}

	assert.Equal(t, 1.0, counter("treasury_account_opened_total"))
	assert.Equal(t, 2.0, counter("treasury_mutation_applied_total"))
	assert.Equal(t, 1.0, counter("treasury_mutation_applied_stack_total"))
	assert.Equal(t, 1.0, counter("treasury_mutation_rejected_total"))
	assert.Equal(t, 1.0, counter("treasury_transfer_failed_total"))
	assert.Equal(t, 1.0, counter("treasury_batch_rolled_back_total"))
	assert.Equal(t, 2.0, counter("treasury_batch_legs_failed_total"))
	assert.Equal(t, uint64(2), got["treasury_mutation_amount"].GetHistogram().GetSampleCount())
}

func TestPrometheusFactoryReusesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := observability.NewPrometheusFactory(reg)

	f.Counter("treasury.test").Inc()
	f.Counter("treasury.test").Add(2)

	// A second factory on the same registry shares the collector.
	observability.NewPrometheusFactory(reg).Counter("treasury.test").Inc()

	got := gather(t, reg)
	assert.Equal(t, 4.0, got["treasury_test_total"].GetCounter().GetValue())
}
