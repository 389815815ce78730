// Command setup-metrics creates the log metric filters that count errors and
// model loads, and seeds the custom metric namespaces so the dashboards
// render before real traffic arrives.
package main

import (
	"context"
	"flag"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/mattn/go-colorable"
	"github.com/mitchellh/colorstring"

	appconfig "github.com/mckdm/transformer-serverless/internal/config"
	"github.com/mckdm/transformer-serverless/internal/provision"
)

func main() {
	cfg := appconfig.Load()
	project := flag.String("project", cfg.ProjectName, "Project name prefix for resources")
	region := flag.String("region", cfg.Region, "AWS region")
	environment := flag.String("environment", cfg.Environment, "Environment dimension for seeded metrics")
	flag.Parse()

	stdout := colorable.NewColorableStdout()
	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(*region))
	if err != nil {
		colorstring.Fprintf(stdout, "[red]✗ failed to load AWS config: %v\n", err)
		os.Exit(1)
	}

	colorstring.Fprintf(stdout, "[bold]Setting up custom metrics for %s...\n", *project)

	if err := provision.CreateMetricFilters(ctx, cloudwatchlogs.NewFromConfig(awsCfg), *project); err != nil {
		colorstring.Fprintf(stdout, "[red]✗ %v\n", err)
		os.Exit(1)
	}
	colorstring.Fprintf(stdout, "[green]✓ Metric filters created\n")

	if err := provision.SeedCustomMetrics(ctx, cloudwatch.NewFromConfig(awsCfg), *environment); err != nil {
		colorstring.Fprintf(stdout, "[red]✗ %v\n", err)
		os.Exit(1)
	}
	colorstring.Fprintf(stdout, "[green]✓ Custom metrics seeded\n")
}
