package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"

	"github.com/bft-labs/batchship/internal/app"
	"github.com/bft-labs/batchship/internal/cliconfig"
	"github.com/bft-labs/batchship/pkg/dispatch"
	"github.com/bft-labs/batchship/pkg/dynamo"
	"github.com/bft-labs/batchship/pkg/stream"
)

func loadAWSConfig(ctx context.Context, cfg cliconfig.Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

func newDynamoDBSink(ctx context.Context, cfg cliconfig.Config, opts ...dispatch.Option) (app.Sink, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}
	})

	keyType, err := dynamo.ParseKeyType(cfg.KeyType)
	if err != nil {
		return nil, err
	}

	dc := dynamo.DefaultConfig(cfg.Table, cfg.PrimaryKey)
	dc.KeyConverter = keyType
	dc.PartitionKeyLocation = cfg.PartitionKeyLocation
	dc.MaxBatchSize = cfg.MaxBatchSize
	dc.FlushOnMaxBatchSize = cfg.FlushOnFull
	dc.IndividualRetries = cfg.IndividualRetries

	d, err := dynamo.New(client, dc, opts...)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func newKinesisSink(ctx context.Context, cfg cliconfig.Config, opts ...dispatch.Option) (app.Sink, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client := kinesis.NewFromConfig(awsCfg, func(o *kinesis.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}
	})

	sc := stream.DefaultConfig(cfg.Stream)
	sc.PartitionKeyField = cfg.PartitionKeyField
	sc.MaxBatchSize = cfg.MaxBatchSize
	sc.FlushOnMaxBatchSize = cfg.FlushOnFull
	sc.IndividualRetries = cfg.IndividualRetries
	sc.NestedBatchRetries = cfg.NestedBatchRetries

	d, err := stream.New(client, sc, opts...)
	if err != nil {
		return nil, err
	}
	return d, nil
}
