// Package bedrock is a standalone connectivity diagnostic for AWS Bedrock.
// It is invoked by the doctor command only and never enters the container
// lifecycle.
package bedrock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"go.uber.org/zap"
)

const checkTimeout = 15 * time.Second

// modelLister is the slice of the Bedrock API the check uses.
type modelLister interface {
	ListFoundationModels(ctx context.Context, in *bedrock.ListFoundationModelsInput, opts ...func(*bedrock.Options)) (*bedrock.ListFoundationModelsOutput, error)
}

// Check verifies that the staged credentials can reach Bedrock in the given
// region and that the configured model is actually offered there.
func Check(ctx context.Context, logger *zap.Logger, region, modelID, credentialsFile string) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if credentialsFile != "" {
		opts = append(opts, awsconfig.WithSharedCredentialsFiles([]string{credentialsFile}))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return check(ctx, logger, bedrock.NewFromConfig(cfg), region, modelID)
}

func check(ctx context.Context, logger *zap.Logger, client modelLister, region, modelID string) error {
	out, err := client.ListFoundationModels(ctx, &bedrock.ListFoundationModelsInput{
		ByProvider: aws.String("Anthropic"),
	})
	if err != nil {
		return fmt.Errorf("bedrock unreachable in %s: %w", region, err)
	}
	logger.Debug("bedrock reachable",
		zap.String("region", region),
		zap.Int("models", len(out.ModelSummaries)))

	if modelID == "" {
		return nil
	}
	// Cross-region inference profile IDs prefix the plain model ID.
	want := strings.TrimPrefix(strings.TrimPrefix(strings.TrimPrefix(
		modelID, "us."), "eu."), "apac.")
	for _, summary := range out.ModelSummaries {
		if aws.ToString(summary.ModelId) == want {
			return nil
		}
	}
	return fmt.Errorf("model %s not offered in %s", modelID, region)
}
