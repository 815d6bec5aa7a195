package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstance_NotInitialized(t *testing.T) {
	Reset()

	_, err := Instance()
	assert.ErrorIs(t, err, ErrNotInitialized)

	err = ReportUsage(context.Background(), NewRecord("sk-live-0001", "llm", "gpt-4", 1, nil))
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = RequireAPIKey(header("sk-live-0001"))
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestInitialize_SameConfigReturnsExisting(t *testing.T) {
	t.Cleanup(Reset)
	d := &fakeDialer{}

	first, err := Initialize(testConfig(), WithDialer(d))
	require.NoError(t, err)

	second, err := Initialize(testConfig(), WithDialer(d))
	require.NoError(t, err)
	assert.Same(t, first, second)

	got, err := Instance()
	require.NoError(t, err)
	assert.Same(t, first, got)
}

func TestInitialize_DifferentConfigFails(t *testing.T) {
	t.Cleanup(Reset)
	d := &fakeDialer{}

	first, err := Initialize(testConfig(), WithDialer(d))
	require.NoError(t, err)

	other := testConfig()
	other.MQTT.Broker.Host = "other.test"
	_, err = Initialize(other, WithDialer(d))
	require.ErrorIs(t, err, ErrAlreadyInitialized)

	got, err := Instance()
	require.NoError(t, err)
	assert.Same(t, first, got)
	assert.Equal(t, "broker.test", got.Config().MQTT.Broker.Host)
}

func TestInitialize_InvalidConfigLeavesNoInstance(t *testing.T) {
	t.Cleanup(Reset)
	Reset()

	cfg := testConfig()
	cfg.MQTT.Broker.Port = 0
	_, err := Initialize(cfg, WithDialer(&fakeDialer{}))
	require.Error(t, err)

	_, err = Instance()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestInstance_SurvivesDisconnect(t *testing.T) {
	t.Cleanup(Reset)
	d := &fakeDialer{}

	c, err := Initialize(testConfig(), WithDialer(d))
	require.NoError(t, err)
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, ReportUsage(context.Background(), NewRecord("sk-live-0001", "llm", "gpt-4", 3, nil)))
	assert.Equal(t, 1, d.reports(reportTopic))

	c.Disconnect()

	got, err := Instance()
	require.NoError(t, err)
	assert.Same(t, c, got)
	assert.ErrorIs(t,
		ReportUsage(context.Background(), NewRecord("sk-live-0001", "llm", "gpt-4", 3, nil)),
		ErrNotConnected)
}

func TestReset_AllowsReinitialisation(t *testing.T) {
	t.Cleanup(Reset)
	d := &fakeDialer{}

	_, err := Initialize(testConfig(), WithDialer(d))
	require.NoError(t, err)
	Reset()

	other := testConfig()
	other.MQTT.Broker.Host = "other.test"
	c, err := Initialize(other, WithDialer(d))
	require.NoError(t, err)
	assert.Equal(t, "other.test", c.Config().MQTT.Broker.Host)
}
