package instrument

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/domainscope/internal/registry"
	"github.com/fyrsmithlabs/domainscope/internal/sink"
	"go.uber.org/zap"
)

var metricKinds = map[registry.MetricKind]sink.Kind{
	registry.KindCounter:   sink.Counter,
	registry.KindHistogram: sink.Histogram,
	registry.KindGauge:     sink.Gauge,
}

// RecordBusinessMetric records value for the custom metric metricName.
//
// The metric is looked up across the domain's features; an unknown name is
// logged and nothing is recorded. Caller labels are enriched with domain,
// feature, business_impact and user_segment, which take precedence over
// caller values of the same name. It reports whether the value was recorded.
func (in *Instrumentor) RecordBusinessMetric(ctx context.Context, metricName string, value float64, labels map[string]string) bool {
	feature, metric, ok := in.domain.FeatureForMetric(metricName)
	if !ok {
		in.logger.Warn(in.logContext(ctx, ""), "business metric not found", zap.String("metric", metricName))
		return false
	}

	kind, ok := metricKinds[metric.Kind]
	if !ok {
		in.logger.Warn(in.logContext(ctx, feature.Name), "business metric has unknown kind",
			zap.String("metric", metricName),
			zap.String("kind", string(metric.Kind)))
		return false
	}

	enriched := make(map[string]string, len(labels)+4)
	for k, v := range labels {
		enriched[k] = v
	}
	enriched["domain"] = in.domain.Name
	enriched["feature"] = feature.Name
	enriched["business_impact"] = string(metric.BusinessImpact)
	enriched["user_segment"] = in.user.Segment()

	in.sink.RecordMetric(ctx, sink.Metric{
		Name:   fmt.Sprintf("%s.%s.%s", in.domain.Name, feature.Name, metric.Name),
		Kind:   kind,
		Value:  value,
		Labels: enriched,
	})

	if threshold, ok := in.thresholds[metricName]; ok && value > threshold {
		in.logger.Warn(in.logContext(ctx, feature.Name), "business metric above threshold",
			zap.String("metric", metricName),
			zap.Float64("value", value),
			zap.Float64("threshold", threshold))
	}
	return true
}
