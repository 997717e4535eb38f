package telemetry

import (
	"context"
	"testing"

	"github.com/IliaW/page-capture/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupMetricsDisabled(t *testing.T) {
	cfg := &config.Config{
		ServiceName:       "page-capture",
		TelemetrySettings: &config.TelemetryConfig{Enabled: false},
	}

	m := SetupMetrics(context.Background(), cfg)
	require.NotNil(t, m.AppMetrics)
	require.NotNil(t, m.KafkaConsumerMetrics)
	require.NotNil(t, m.KafkaProducerMetrics)
	assert.NotPanics(t, func() {
		m.AppMetrics.CapturedCnt(1)
		m.AppMetrics.SkippedCnt(1)
		m.AppMetrics.FailedCnt(1)
		m.AppMetrics.InvalidInputCnt(1)
		m.AppMetrics.CaptureTimeMs(120)
		m.KafkaConsumerMetrics.SuccessfullyReadMsgCnt(1)
		m.KafkaProducerMetrics.FailedSendMsgCnt(1)
		m.Close()
	})
}
