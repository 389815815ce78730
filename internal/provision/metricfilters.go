package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	logstypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

// MetricFilterPutter is the slice of the CloudWatch Logs API filter creation
// uses.
type MetricFilterPutter interface {
	PutMetricFilter(ctx context.Context, params *cloudwatchlogs.PutMetricFilterInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutMetricFilterOutput, error)
}

// MetricDataPutter seeds the custom namespaces so dashboards render before
// real traffic arrives.
type MetricDataPutter interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricFilterInputs returns the log metric filters that turn log lines into
// CloudWatch metrics: error counts per function and successful model loads.
// The model-load pattern matches the line the artifact loader writes on a
// cold start.
func MetricFilterInputs(project string) []*cloudwatchlogs.PutMetricFilterInput {
	return []*cloudwatchlogs.PutMetricFilterInput{
		{
			LogGroupName:  aws.String("/aws/lambda/" + generateFn(project)),
			FilterName:    aws.String("GenerationErrors"),
			FilterPattern: aws.String("ERROR"),
			MetricTransformations: []logstypes.MetricTransformation{
				{
					MetricName:      aws.String("GenerationErrors"),
					MetricNamespace: aws.String("TransformerModel/Errors"),
					MetricValue:     aws.String("1"),
				},
			},
		},
		{
			LogGroupName:  aws.String("/aws/lambda/" + visualizeFn(project)),
			FilterName:    aws.String("VisualizationErrors"),
			FilterPattern: aws.String("ERROR"),
			MetricTransformations: []logstypes.MetricTransformation{
				{
					MetricName:      aws.String("VisualizationErrors"),
					MetricNamespace: aws.String("TransformerModel/Errors"),
					MetricValue:     aws.String("1"),
				},
			},
		},
		{
			LogGroupName:  aws.String("/aws/lambda/" + generateFn(project)),
			FilterName:    aws.String("ModelLoads"),
			FilterPattern: aws.String("\"Model loaded successfully\""),
			MetricTransformations: []logstypes.MetricTransformation{
				{
					MetricName:      aws.String("ModelLoads"),
					MetricNamespace: aws.String("TransformerModel/ColdStart"),
					MetricValue:     aws.String("1"),
				},
			},
		},
	}
}

// CreateMetricFilters pushes the log metric filters. A filter that already
// exists is not an error; PutMetricFilter replaces it.
func CreateMetricFilters(ctx context.Context, client MetricFilterPutter, project string) error {
	for _, input := range MetricFilterInputs(project) {
		if _, err := client.PutMetricFilter(ctx, input); err != nil {
			var notFound *logstypes.ResourceNotFoundException
			if errors.As(err, &notFound) {
				// The log group only exists after the function has run once.
				continue
			}
			return fmt.Errorf("provision: failed to create metric filter %s: %w", aws.ToString(input.FilterName), err)
		}
	}
	return nil
}

// SeedCustomMetrics publishes a zero datapoint to each custom metric so the
// dashboards show the series immediately after deployment.
func SeedCustomMetrics(ctx context.Context, client MetricDataPutter, environment string) error {
	now := time.Now()
	seeds := []struct {
		namespace string
		name      string
		unit      cwtypes.StandardUnit
		dims      []cwtypes.Dimension
	}{
		{
			namespace: "TransformerModel/Performance",
			name:      "ModelInferenceLatency",
			unit:      cwtypes.StandardUnitMilliseconds,
			dims: []cwtypes.Dimension{
				{Name: aws.String("FunctionType"), Value: aws.String("TextGeneration")},
			},
		},
		{
			namespace: "TransformerModel/Performance",
			name:      "AttentionVisualizationLatency",
			unit:      cwtypes.StandardUnitMilliseconds,
			dims: []cwtypes.Dimension{
				{Name: aws.String("FunctionType"), Value: aws.String("AttentionVisualization")},
			},
		},
		{
			namespace: "TransformerModel/ColdStart",
			name:      "ModelLoadTime",
			unit:      cwtypes.StandardUnitSeconds,
			dims: []cwtypes.Dimension{
				{Name: aws.String("ModelType"), Value: aws.String("Transformer")},
			},
		},
		{
			namespace: "TransformerModel/Usage",
			name:      "TokensGenerated",
			unit:      cwtypes.StandardUnitCount,
			dims: []cwtypes.Dimension{
				{Name: aws.String("FunctionType"), Value: aws.String("TextGeneration")},
			},
		},
	}

	for _, s := range seeds {
		dims := append(s.dims, cwtypes.Dimension{
			Name:  aws.String("Environment"),
			Value: aws.String(environment),
		})
		_, err := client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace: aws.String(s.namespace),
			MetricData: []cwtypes.MetricDatum{
				{
					MetricName: aws.String(s.name),
					Value:      aws.Float64(0),
					Unit:       s.unit,
					Timestamp:  aws.Time(now),
					Dimensions: dims,
				},
			},
		})
		if err != nil {
			return fmt.Errorf("provision: failed to seed metric %s: %w", s.name, err)
		}
	}
	return nil
}
