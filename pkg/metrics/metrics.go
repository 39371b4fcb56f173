// Package metrics posts submission outcomes. Datadog is used when an API key
// is configured; otherwise observations are dropped.
package metrics

import (
	"context"
	"time"

	datadog "github.com/DataDog/datadog-api-client-go/api/v2/datadog"
	"github.com/rs/zerolog/log"
)

type Sink interface {
	Gauge(ctx context.Context, name string, value float64, tags []string)
}

type Noop struct{}

func (Noop) Gauge(context.Context, string, float64, []string) {}

type Datadog struct {
	client *datadog.APIClient
	keys   map[string]datadog.APIKey
}

func NewDatadog(apiKey, appKey string) *Datadog {
	return newDatadog(datadog.NewConfiguration(), apiKey, appKey)
}

func newDatadog(cfg *datadog.Configuration, apiKey, appKey string) *Datadog {
	return &Datadog{
		client: datadog.NewAPIClient(cfg),
		keys: map[string]datadog.APIKey{
			"apiKeyAuth": {Key: apiKey},
			"appKeyAuth": {Key: appKey},
		},
	}
}

// Gauge submits a single point. Failures are only logged.
func (d *Datadog) Gauge(ctx context.Context, name string, value float64, tags []string) {
	ctx = context.WithValue(ctx, datadog.ContextAPIKeys, d.keys)
	point := datadog.MetricPoint{
		Timestamp: datadog.PtrInt64(time.Now().Unix()),
		Value:     datadog.PtrFloat64(value),
	}
	payload := datadog.MetricPayload{
		Series: []datadog.MetricSeries{{
			Metric: name,
			Type:   datadog.METRICINTAKETYPE_GAUGE.Ptr(),
			Points: []datadog.MetricPoint{point},
			Tags:   tags,
		}},
	}
	if _, _, err := d.client.MetricsApi.SubmitMetrics(ctx, payload); err != nil {
		log.Warn().Err(err).Str("metric", name).Msg("failed to post metric to datadog")
		return
	}
	log.Debug().Msgf("Metric %s posted", name)
}
