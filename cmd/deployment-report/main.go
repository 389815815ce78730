// Command deployment-report prints a Markdown summary of the deployed stack:
// function configurations, artifact sizes and month-to-date cost.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mattn/go-colorable"
	"github.com/mitchellh/colorstring"

	appconfig "github.com/mckdm/transformer-serverless/internal/config"
	"github.com/mckdm/transformer-serverless/internal/provision"
)

func main() {
	cfg := appconfig.Load()
	project := flag.String("project", cfg.ProjectName, "Project name prefix for resources")
	region := flag.String("region", cfg.Region, "AWS region")
	bucket := flag.String("bucket", cfg.ArtifactBucket, "Artifact bucket name")
	outPath := flag.String("out", "", "Write the report to a file instead of stdout")
	flag.Parse()

	stdout := colorable.NewColorableStdout()
	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(*region))
	if err != nil {
		colorstring.Fprintf(stdout, "[red]✗ failed to load AWS config: %v\n", err)
		os.Exit(1)
	}

	// Cost Explorer is a global API served from us-east-1.
	ceCfg := awsCfg.Copy()
	ceCfg.Region = "us-east-1"

	clients := provision.ReportClients{
		Lambda: lambda.NewFromConfig(awsCfg),
		S3:     s3.NewFromConfig(awsCfg),
		Cost:   costexplorer.NewFromConfig(ceCfg),
	}

	report, err := provision.GatherReport(ctx, clients, *project, *region, *bucket)
	if err != nil {
		colorstring.Fprintf(stdout, "[red]✗ %v\n", err)
		os.Exit(1)
	}

	md := report.Markdown()
	if *outPath != "" {
		if err := os.WriteFile(*outPath, []byte(md), 0o644); err != nil {
			colorstring.Fprintf(stdout, "[red]✗ failed to write report: %v\n", err)
			os.Exit(1)
		}
		colorstring.Fprintf(stdout, "[green]✓ Report written to %s\n", *outPath)
		return
	}
	fmt.Print(md)
}
