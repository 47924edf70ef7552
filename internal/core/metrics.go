package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metric names and dimensions.
const (
	MetricAPIRequest     = "APIRequest"
	MetricAPILatency     = "APILatency"
	MetricWebhookOutcome = "WebhookEvent"

	DimMethod    = "Method"
	DimRoute     = "Route"
	DimStatus    = "Status"
	DimEventType = "EventType"
	DimOutcome   = "Outcome"
)

// metricPublishTimeout bounds a single PutMetricData call so a slow
// CloudWatch endpoint does not hold the request goroutine.
const metricPublishTimeout = time.Second

// MetricsCollector records request telemetry.
type MetricsCollector interface {
	RecordRequest(ctx context.Context, method, route, status string, duration time.Duration)
}

// CloudWatchClient is the PutMetricData subset of the CloudWatch SDK client.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics publishes request and webhook metrics. Publish failures
// are logged and never surface to the caller.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

var _ MetricsCollector = (*CloudWatchMetrics)(nil)

// NewCloudWatchMetrics creates a collector publishing under namespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchMetrics{client: client, namespace: namespace, logger: logger}
}

// RecordRequest emits a count and a latency datum for one request.
func (m *CloudWatchMetrics) RecordRequest(ctx context.Context, method, route, status string, duration time.Duration) {
	dims := []cwtypes.Dimension{
		{Name: aws.String(DimMethod), Value: aws.String(method)},
		{Name: aws.String(DimRoute), Value: aws.String(route)},
		{Name: aws.String(DimStatus), Value: aws.String(status)},
	}

	m.put(ctx, []cwtypes.MetricDatum{
		{
			MetricName: aws.String(MetricAPIRequest),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
		{
			MetricName: aws.String(MetricAPILatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
	}, "route", route)
}

// RecordWebhook emits one datum per processed webhook delivery, e.g.
// {EventType: customer.subscription.updated, Outcome: handled}.
func (m *CloudWatchMetrics) RecordWebhook(ctx context.Context, eventType, outcome string) {
	m.put(ctx, []cwtypes.MetricDatum{
		{
			MetricName: aws.String(MetricWebhookOutcome),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{
				{Name: aws.String(DimEventType), Value: aws.String(eventType)},
				{Name: aws.String(DimOutcome), Value: aws.String(outcome)},
			},
		},
	}, "event_type", eventType, "outcome", outcome)
}

func (m *CloudWatchMetrics) put(ctx context.Context, data []cwtypes.MetricDatum, logAttrs ...any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricPublishTimeout)
	defer cancel()

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	})
	if err != nil {
		m.logger.WarnContext(ctx, "failed to publish metric", append([]any{"error", err.Error()}, logAttrs...)...)
	}
}
