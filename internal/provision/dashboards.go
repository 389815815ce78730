// Package provision creates the AWS monitoring resources around the two
// inference functions: CloudWatch dashboards and alarms, budget alerts,
// custom-metric bootstrap and the deployment report. Everything here is
// declarative configuration pushed through the AWS SDK; none of it is part
// of the inference contract.
package provision

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
)

// DashboardPutter is the slice of the CloudWatch API dashboard creation
// needs.
type DashboardPutter interface {
	PutDashboard(ctx context.Context, params *cloudwatch.PutDashboardInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutDashboardOutput, error)
}

// Dashboard bodies are raw CloudWatch JSON, built as nested maps the same
// way the console export looks. Typed structs would buy nothing here.

func metricWidget(x, y, w, h int, props map[string]any) map[string]any {
	return map[string]any{
		"type":       "metric",
		"x":          x,
		"y":          y,
		"width":      w,
		"height":     h,
		"properties": props,
	}
}

func generateFn(project string) string  { return project + "-generate-text" }
func visualizeFn(project string) string { return project + "-visualize-attention" }

// PerformanceDashboardBody returns the JSON body of the performance
// dashboard: Lambda duration/invocations/errors, API Gateway metrics, the
// custom ML metrics and a recent-errors log widget.
func PerformanceDashboardBody(project, region string) ([]byte, error) {
	body := map[string]any{
		"widgets": []map[string]any{
			metricWidget(0, 0, 12, 6, map[string]any{
				"metrics": [][]any{
					{"AWS/Lambda", "Duration", "FunctionName", generateFn(project)},
					{".", ".", ".", visualizeFn(project)},
					{"AWS/Lambda", "Invocations", "FunctionName", generateFn(project)},
					{".", ".", ".", visualizeFn(project)},
				},
				"view":    "timeSeries",
				"stacked": false,
				"region":  region,
				"title":   "Lambda Function Performance",
				"period":  300,
				"stat":    "Average",
			}),
			metricWidget(12, 0, 12, 6, map[string]any{
				"metrics": [][]any{
					{"AWS/Lambda", "Errors", "FunctionName", generateFn(project)},
					{".", ".", ".", visualizeFn(project)},
					{"AWS/Lambda", "Throttles", "FunctionName", generateFn(project)},
					{".", ".", ".", visualizeFn(project)},
				},
				"view":    "timeSeries",
				"stacked": false,
				"region":  region,
				"title":   "Lambda Function Errors & Throttles",
				"period":  300,
				"stat":    "Sum",
			}),
			metricWidget(0, 6, 12, 6, map[string]any{
				"metrics": [][]any{
					{"AWS/ApiGateway", "Count", "ApiName", project + "-api"},
					{"AWS/ApiGateway", "Latency", "ApiName", project + "-api"},
					{"AWS/ApiGateway", "4XXError", "ApiName", project + "-api"},
					{"AWS/ApiGateway", "5XXError", "ApiName", project + "-api"},
				},
				"view":    "timeSeries",
				"stacked": false,
				"region":  region,
				"title":   "API Gateway Metrics",
				"period":  300,
				"stat":    "Average",
			}),
			metricWidget(12, 6, 12, 6, map[string]any{
				"metrics": [][]any{
					{"TransformerModel/Performance", "ModelInferenceLatency", "FunctionType", "TextGeneration"},
					{".", "AttentionVisualizationLatency", ".", "AttentionVisualization"},
					{"TransformerModel/ColdStart", "ModelLoadTime", "ModelType", "Transformer"},
				},
				"view":    "timeSeries",
				"stacked": false,
				"region":  region,
				"title":   "Custom ML Metrics",
				"period":  300,
				"stat":    "Average",
			}),
			{
				"type":   "log",
				"x":      0,
				"y":      12,
				"width":  24,
				"height": 6,
				"properties": map[string]any{
					"query": fmt.Sprintf("SOURCE '/aws/lambda/%s' | SOURCE '/aws/lambda/%s'\n"+
						"| fields @timestamp, @message\n"+
						"| filter @message like /ERROR/\n"+
						"| sort @timestamp desc\n"+
						"| limit 20", generateFn(project), visualizeFn(project)),
					"region": region,
					"title":  "Recent Errors",
					"view":   "table",
				},
			},
		},
	}
	return json.Marshal(body)
}

// CostDashboardBody returns the JSON body of the cost dashboard: the Lambda
// and storage usage that drives the bill, plus the business usage metrics.
func CostDashboardBody(project, region string) ([]byte, error) {
	body := map[string]any{
		"widgets": []map[string]any{
			metricWidget(0, 0, 12, 6, map[string]any{
				"metrics": [][]any{
					{"AWS/Lambda", "Invocations", "FunctionName", generateFn(project)},
					{".", ".", ".", visualizeFn(project)},
					{"AWS/Lambda", "Duration", "FunctionName", generateFn(project)},
					{".", ".", ".", visualizeFn(project)},
				},
				"view":    "timeSeries",
				"stacked": false,
				"region":  region,
				"title":   "Lambda Usage (Cost Drivers)",
				"period":  3600,
				"stat":    "Sum",
			}),
			metricWidget(12, 0, 12, 6, map[string]any{
				"metrics": [][]any{
					{"AWS/ApiGateway", "Count", "ApiName", project + "-api"},
					{"AWS/S3", "NumberOfObjects", "BucketName", project + "-artifacts", "StorageType", "AllStorageTypes"},
				},
				"view":    "timeSeries",
				"stacked": false,
				"region":  region,
				"title":   "API & Storage Usage",
				"period":  3600,
				"stat":    "Sum",
			}),
			metricWidget(0, 6, 24, 6, map[string]any{
				"metrics": [][]any{
					{"TransformerModel/Usage", "TokensGenerated", "FunctionType", "TextGeneration"},
					{"TransformerModel/Performance", "ModelInferenceLatency", "FunctionType", "TextGeneration"},
					{".", "AttentionVisualizationLatency", ".", "AttentionVisualization"},
				},
				"view":    "timeSeries",
				"stacked": false,
				"region":  region,
				"title":   "Usage Metrics (Business Logic)",
				"period":  3600,
				"stat":    "Sum",
			}),
		},
	}
	return json.Marshal(body)
}

// CreateDashboards pushes both dashboards, named <project>-performance-dashboard
// and <project>-cost-dashboard.
func CreateDashboards(ctx context.Context, client DashboardPutter, project, region string) error {
	perf, err := PerformanceDashboardBody(project, region)
	if err != nil {
		return fmt.Errorf("provision: failed to build performance dashboard: %w", err)
	}
	cost, err := CostDashboardBody(project, region)
	if err != nil {
		return fmt.Errorf("provision: failed to build cost dashboard: %w", err)
	}

	dashboards := []struct {
		name string
		body []byte
	}{
		{project + "-performance-dashboard", perf},
		{project + "-cost-dashboard", cost},
	}

	for _, d := range dashboards {
		_, err := client.PutDashboard(ctx, &cloudwatch.PutDashboardInput{
			DashboardName: aws.String(d.name),
			DashboardBody: aws.String(string(d.body)),
		})
		if err != nil {
			return fmt.Errorf("provision: failed to create dashboard %s: %w", d.name, err)
		}
	}
	return nil
}
