// Package metrics publishes the custom CloudWatch metrics the monitoring
// dashboards chart: inference latency, cold-start model load time and token
// throughput.
//
// Publishing is best effort. A metric that fails to land is logged and
// dropped; it never fails a user request.
package metrics

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Custom metric namespaces. The dashboards and metric filters reference
// these names verbatim.
const (
	NamespacePerformance = "TransformerModel/Performance"
	NamespaceColdStart   = "TransformerModel/ColdStart"
	NamespaceUsage       = "TransformerModel/Usage"
)

// PutMetricDataAPI is the slice of the CloudWatch API the publisher needs.
type PutMetricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Publisher emits custom metrics. A nil *Publisher is valid and discards
// everything, so callers need no guards when metrics are disabled.
type Publisher struct {
	client      PutMetricDataAPI
	environment string
}

// NewPublisher creates a Publisher tagging metrics with the given
// environment dimension.
func NewPublisher(client PutMetricDataAPI, environment string) *Publisher {
	return &Publisher{client: client, environment: environment}
}

// putTimeout bounds each PutMetricData call so a slow CloudWatch endpoint
// cannot stall the request path.
const putTimeout = 2 * time.Second

func (p *Publisher) put(namespace, name string, value float64, unit types.StandardUnit, dims []types.Dimension) {
	if p == nil || p.client == nil {
		return
	}

	dims = append(dims, types.Dimension{
		Name:  aws.String("Environment"),
		Value: aws.String(p.environment),
	})

	ctx, cancel := context.WithTimeout(context.Background(), putTimeout)
	defer cancel()

	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(namespace),
		MetricData: []types.MetricDatum{{
			MetricName: aws.String(name),
			Dimensions: dims,
			Unit:       unit,
			Value:      aws.Float64(value),
			Timestamp:  aws.Time(time.Now().UTC()),
		}},
	})
	if err != nil {
		log.Printf("metrics: failed to publish %s/%s: %v", namespace, name, err)
	}
}

func functionTypeDim(functionType string) []types.Dimension {
	return []types.Dimension{{
		Name:  aws.String("FunctionType"),
		Value: aws.String(functionType),
	}}
}

// InferenceLatency records one text-generation inference duration.
func (p *Publisher) InferenceLatency(d time.Duration) {
	p.put(NamespacePerformance, "ModelInferenceLatency",
		float64(d.Milliseconds()), types.StandardUnitMilliseconds,
		functionTypeDim("TextGeneration"))
}

// VisualizationLatency records one attention-visualization duration.
func (p *Publisher) VisualizationLatency(d time.Duration) {
	p.put(NamespacePerformance, "AttentionVisualizationLatency",
		float64(d.Milliseconds()), types.StandardUnitMilliseconds,
		functionTypeDim("AttentionVisualization"))
}

// ModelLoadTime records a cold-start artifact load duration.
func (p *Publisher) ModelLoadTime(d time.Duration) {
	p.put(NamespaceColdStart, "ModelLoadTime",
		d.Seconds(), types.StandardUnitSeconds,
		[]types.Dimension{{
			Name:  aws.String("ModelType"),
			Value: aws.String("Transformer"),
		}})
}

// TokensGenerated records how many tokens one generation request produced.
func (p *Publisher) TokensGenerated(n int) {
	p.put(NamespaceUsage, "TokensGenerated",
		float64(n), types.StandardUnitCount,
		functionTypeDim("TextGeneration"))
}
