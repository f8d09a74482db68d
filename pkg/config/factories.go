package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/skiffhttp/skiff/internal/logger"
	"github.com/skiffhttp/skiff/pkg/source"
	"github.com/skiffhttp/skiff/pkg/source/badger"
	"github.com/skiffhttp/skiff/pkg/source/fs"
	"github.com/skiffhttp/skiff/pkg/source/memory"
	"github.com/skiffhttp/skiff/pkg/source/s3"
)

// CreateSourceStore creates a content source based on configuration.
//
// The Type field selects the implementation; the matching options map is
// decoded into that backend's own configuration struct and passed to its
// constructor.
//
// Supported types:
//   - "filesystem": pkg/source/fs (local directory tree)
//   - "memory": pkg/source/memory (volatile, development and testing)
//   - "badger": pkg/source/badger (embedded BadgerDB blob store)
//   - "s3": pkg/source/s3 (Amazon S3 or compatible storage)
func CreateSourceStore(ctx context.Context, cfg *SourceConfig) (source.Store, error) {
	switch cfg.Type {
	case "filesystem":
		return createFilesystemStore(ctx, cfg.Filesystem)
	case "memory":
		return createMemoryStore(ctx)
	case "badger":
		return createBadgerStore(ctx, cfg.Badger)
	case "s3":
		return createS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown source store type: %q", cfg.Type)
	}
}

// createFilesystemStore creates a filesystem-backed source.
func createFilesystemStore(ctx context.Context, options map[string]any) (source.Store, error) {
	type filesystemOptions struct {
		Root string `mapstructure:"root"`
	}

	var storeCfg filesystemOptions
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem source config: %w", err)
	}

	if storeCfg.Root == "" {
		return nil, fmt.Errorf("filesystem source: root is required")
	}

	store, err := fs.NewFSStore(ctx, storeCfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem source: %w", err)
	}

	logger.Info("Filesystem source initialized: root=%s", storeCfg.Root)
	return store, nil
}

// createMemoryStore creates an empty in-memory source. Content is seeded
// programmatically by embedders; from a config file the store starts empty.
func createMemoryStore(ctx context.Context) (source.Store, error) {
	store, err := memory.NewMemoryStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory source: %w", err)
	}

	logger.Warn("Memory source starts empty; content must be seeded by the embedder")
	return store, nil
}

// createBadgerStore creates a BadgerDB-backed source.
func createBadgerStore(ctx context.Context, options map[string]any) (source.Store, error) {
	type badgerOptions struct {
		Path     string `mapstructure:"path"`
		InMemory bool   `mapstructure:"in_memory"`
	}

	var storeCfg badgerOptions
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger source config: %w", err)
	}

	if storeCfg.Path == "" && !storeCfg.InMemory {
		return nil, fmt.Errorf("badger source: path is required unless in_memory is set")
	}

	store, err := badger.NewBadgerStore(ctx, badger.Options{
		Path:     storeCfg.Path,
		InMemory: storeCfg.InMemory,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger source: %w", err)
	}

	logger.Info("Badger source initialized: path=%s in_memory=%v", storeCfg.Path, storeCfg.InMemory)
	return store, nil
}

// createS3Store creates an S3-backed source, assembling the AWS client from
// the options map (region, optional custom endpoint and static credentials
// for MinIO/Localstack, retry policy).
func createS3Store(ctx context.Context, options map[string]any) (source.Store, error) {
	type s3Options struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var storeCfg s3Options
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 source config: %w", err)
	}

	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 source: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 source: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(storeCfg.Region))

	if storeCfg.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               storeCfg.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	if storeCfg.AccessKeyID != "" && storeCfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			storeCfg.AccessKeyID,
			storeCfg.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := storeCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		// Path-style addressing for MinIO/Localstack compatibility.
		if storeCfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	store, err := s3.NewS3Store(ctx, s3.Config{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 source: %w", err)
	}

	logger.Info("S3 source initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)

	return store, nil
}
