package provision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// FunctionGetter is the slice of the Lambda API the report uses.
type FunctionGetter interface {
	GetFunction(ctx context.Context, params *lambda.GetFunctionInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error)
}

// ObjectLister is the slice of the S3 API the report uses.
type ObjectLister interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// CostGetter is the slice of the Cost Explorer API the report uses.
type CostGetter interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

// FunctionInfo describes one deployed Lambda function.
type FunctionInfo struct {
	Name         string
	Runtime      string
	MemoryMB     int32
	TimeoutSec   int32
	CodeSize     int64
	LastModified string
}

// ArtifactInfo describes one model artifact in S3.
type ArtifactInfo struct {
	Key       string
	SizeBytes int64
}

// Report holds everything the deployment report renders.
type Report struct {
	Project         string
	Region          string
	GeneratedAt     time.Time
	Functions       []FunctionInfo
	Artifacts       []ArtifactInfo
	MonthToDateUSD  string
	CostUnavailable bool
}

// ReportClients bundles the AWS clients GatherReport reads from.
type ReportClients struct {
	Lambda FunctionGetter
	S3     ObjectLister
	Cost   CostGetter
}

// GatherReport collects the deployed function configurations, the artifact
// sizes in the model bucket and the month-to-date unblended cost. A Cost
// Explorer failure is recorded rather than fatal; the API is often disabled
// on fresh accounts.
func GatherReport(ctx context.Context, clients ReportClients, project, region, bucket string) (*Report, error) {
	report := &Report{
		Project:     project,
		Region:      region,
		GeneratedAt: time.Now().UTC(),
	}

	for _, name := range []string{generateFn(project), visualizeFn(project)} {
		out, err := clients.Lambda.GetFunction(ctx, &lambda.GetFunctionInput{
			FunctionName: aws.String(name),
		})
		if err != nil {
			return nil, fmt.Errorf("provision: failed to describe function %s: %w", name, err)
		}
		cfg := out.Configuration
		report.Functions = append(report.Functions, FunctionInfo{
			Name:         aws.ToString(cfg.FunctionName),
			Runtime:      string(cfg.Runtime),
			MemoryMB:     aws.ToInt32(cfg.MemorySize),
			TimeoutSec:   aws.ToInt32(cfg.Timeout),
			CodeSize:     cfg.CodeSize,
			LastModified: aws.ToString(cfg.LastModified),
		})
	}

	objects, err := clients.S3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String("models/"),
	})
	if err != nil {
		return nil, fmt.Errorf("provision: failed to list artifacts in %s: %w", bucket, err)
	}
	for _, obj := range objects.Contents {
		report.Artifacts = append(report.Artifacts, ArtifactInfo{
			Key:       aws.ToString(obj.Key),
			SizeBytes: aws.ToInt64(obj.Size),
		})
	}

	start := time.Date(report.GeneratedAt.Year(), report.GeneratedAt.Month(), 1, 0, 0, 0, 0, time.UTC)
	cost, err := clients.Cost.GetCostAndUsage(ctx, &costexplorer.GetCostAndUsageInput{
		TimePeriod: &cetypes.DateInterval{
			Start: aws.String(start.Format("2006-01-02")),
			End:   aws.String(report.GeneratedAt.Format("2006-01-02")),
		},
		Granularity: cetypes.GranularityMonthly,
		Metrics:     []string{"UnblendedCost"},
	})
	if err != nil || len(cost.ResultsByTime) == 0 {
		report.CostUnavailable = true
	} else if total, ok := cost.ResultsByTime[0].Total["UnblendedCost"]; ok {
		report.MonthToDateUSD = aws.ToString(total.Amount)
	} else {
		report.CostUnavailable = true
	}

	return report, nil
}

// Markdown renders the report for humans.
func (r *Report) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Deployment Report: %s\n\n", r.Project)
	fmt.Fprintf(&b, "Generated %s (region %s)\n\n", r.GeneratedAt.Format(time.RFC3339), r.Region)

	b.WriteString("## Lambda Functions\n\n")
	b.WriteString("| Function | Runtime | Memory | Timeout | Code Size | Last Modified |\n")
	b.WriteString("|----------|---------|--------|---------|-----------|---------------|\n")
	for _, f := range r.Functions {
		fmt.Fprintf(&b, "| %s | %s | %d MB | %d s | %s | %s |\n",
			f.Name, f.Runtime, f.MemoryMB, f.TimeoutSec, humanBytes(f.CodeSize), f.LastModified)
	}

	b.WriteString("\n## Model Artifacts\n\n")
	if len(r.Artifacts) == 0 {
		b.WriteString("No artifacts found.\n")
	} else {
		b.WriteString("| Key | Size |\n")
		b.WriteString("|-----|------|\n")
		for _, a := range r.Artifacts {
			fmt.Fprintf(&b, "| %s | %s |\n", a.Key, humanBytes(a.SizeBytes))
		}
	}

	b.WriteString("\n## Cost\n\n")
	if r.CostUnavailable {
		b.WriteString("Month-to-date cost unavailable (Cost Explorer not enabled or no data).\n")
	} else {
		fmt.Fprintf(&b, "Month-to-date unblended cost: $%s\n", r.MonthToDateUSD)
	}
	return b.String()
}

func humanBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
