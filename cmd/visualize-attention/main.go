// Command visualize-attention is the Lambda entry point for the attention
// heatmap endpoint.
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mckdm/transformer-serverless/internal/artifact"
	appconfig "github.com/mckdm/transformer-serverless/internal/config"
	"github.com/mckdm/transformer-serverless/internal/handlers"
	"github.com/mckdm/transformer-serverless/internal/metrics"
)

func main() {
	cfg := appconfig.Load()

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.Region))
	if err != nil {
		log.Fatalf("failed to load AWS config: %v", err)
	}

	store := artifact.NewStore(s3.NewFromConfig(awsCfg), cfg.ArtifactBucket)
	loader := artifact.NewLoader(store, cfg.ModelKey, cfg.VocabKey)
	publisher := metrics.NewPublisher(cloudwatch.NewFromConfig(awsCfg), cfg.Environment)

	handler := handlers.NewVisualizeHandler(loader, publisher)
	lambda.Start(handler.Handle)
}
