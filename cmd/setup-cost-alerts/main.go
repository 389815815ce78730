// Command setup-cost-alerts creates the monthly AWS budget with email
// notifications and the CloudWatch usage alarms that warn before the budget
// thresholds trip.
package main

import (
	"context"
	"flag"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/budgets"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/mattn/go-colorable"
	"github.com/mitchellh/colorstring"

	appconfig "github.com/mckdm/transformer-serverless/internal/config"
	"github.com/mckdm/transformer-serverless/internal/provision"
)

func main() {
	cfg := appconfig.Load()
	project := flag.String("project", cfg.ProjectName, "Project name prefix for resources")
	region := flag.String("region", cfg.Region, "AWS region for the usage alarms")
	email := flag.String("email", "", "Email address for budget notifications (required)")
	limit := flag.Float64("limit", 25, "Monthly budget limit in USD")
	flag.Parse()

	stdout := colorable.NewColorableStdout()
	if *email == "" {
		colorstring.Fprintf(stdout, "[red]✗ --email is required\n")
		os.Exit(1)
	}

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(*region))
	if err != nil {
		colorstring.Fprintf(stdout, "[red]✗ failed to load AWS config: %v\n", err)
		os.Exit(1)
	}

	// The Budgets API only exists in us-east-1.
	budgetsCfg := awsCfg.Copy()
	budgetsCfg.Region = "us-east-1"

	colorstring.Fprintf(stdout, "[bold]Setting up cost alerts for %s...\n", *project)

	err = provision.SetupBudget(ctx, budgets.NewFromConfig(budgetsCfg), sts.NewFromConfig(awsCfg), *project, *limit, *email)
	if err != nil {
		colorstring.Fprintf(stdout, "[red]✗ %v\n", err)
		os.Exit(1)
	}
	colorstring.Fprintf(stdout, "[green]✓ Monthly budget of $%.2f with alerts at 80%% actual and 100%% forecasted\n", *limit)

	if err := provision.CreateCostAlarms(ctx, cloudwatch.NewFromConfig(awsCfg), *project); err != nil {
		colorstring.Fprintf(stdout, "[red]✗ %v\n", err)
		os.Exit(1)
	}
	colorstring.Fprintf(stdout, "[green]✓ Usage alarms created\n")
	colorstring.Fprintf(stdout, "Notifications will be sent to %s\n", *email)
}
