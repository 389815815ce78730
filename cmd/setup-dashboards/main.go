// Command setup-dashboards creates the CloudWatch performance and cost
// dashboards for the deployed stack.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/mattn/go-colorable"
	"github.com/mitchellh/colorstring"

	appconfig "github.com/mckdm/transformer-serverless/internal/config"
	"github.com/mckdm/transformer-serverless/internal/provision"
)

func main() {
	cfg := appconfig.Load()
	project := flag.String("project", cfg.ProjectName, "Project name prefix for resources")
	region := flag.String("region", cfg.Region, "AWS region")
	flag.Parse()

	stdout := colorable.NewColorableStdout()
	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(*region))
	if err != nil {
		colorstring.Fprintf(stdout, "[red]✗ failed to load AWS config: %v\n", err)
		os.Exit(1)
	}

	client := cloudwatch.NewFromConfig(awsCfg)
	colorstring.Fprintf(stdout, "[bold]Creating dashboards for %s in %s...\n", *project, *region)

	if err := provision.CreateDashboards(ctx, client, *project, *region); err != nil {
		colorstring.Fprintf(stdout, "[red]✗ %v\n", err)
		os.Exit(1)
	}

	colorstring.Fprintf(stdout, "[green]✓ Created %s-performance-dashboard\n", *project)
	colorstring.Fprintf(stdout, "[green]✓ Created %s-cost-dashboard\n", *project)
	fmt.Printf("View them at https://%s.console.aws.amazon.com/cloudwatch/home?region=%s#dashboards:\n", *region, *region)
}
