package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/rs/zerolog/log"

	"github.com/storeforge/scanapi/internal/config"
)

const (
	maxAltLabels       = 3
	minLabelConfidence = 80
)

// PhotoLabeler suggests alt text for an image.
type PhotoLabeler interface {
	AltText(ctx context.Context, image []byte) (string, error)
}

// RekognitionAPI is the part of the Rekognition client the labeler uses.
type RekognitionAPI interface {
	DetectLabels(ctx context.Context, in *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// RekognitionLabeler builds alt text from AWS Rekognition labels.
type RekognitionLabeler struct {
	client RekognitionAPI
}

// NewRekognitionLabeler creates a labeler for the configured region.
func NewRekognitionLabeler(ctx context.Context, cfg *config.AWSConfig) (*RekognitionLabeler, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.RekognitionRegion)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}
	return &RekognitionLabeler{client: rekognition.NewFromConfig(awsCfg)}, nil
}

// AltText returns up to three confident labels joined as a phrase, e.g.
// "Food, Bread, Bakery". An empty string means nothing confident was found.
func (l *RekognitionLabeler) AltText(ctx context.Context, image []byte) (string, error) {
	out, err := l.client.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         &types.Image{Bytes: image},
		MaxLabels:     aws.Int32(10),
		MinConfidence: aws.Float32(minLabelConfidence),
	})
	if err != nil {
		return "", fmt.Errorf("detect labels: %w", err)
	}

	names := make([]string, 0, maxAltLabels)
	for _, label := range out.Labels {
		if label.Name == nil || *label.Name == "" {
			continue
		}
		names = append(names, *label.Name)
		if len(names) == maxAltLabels {
			break
		}
	}
	log.Debug().Strs("labels", names).Msg("Rekognition labels")
	return strings.Join(names, ", "), nil
}
