package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/aoss"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/bedrock"
	aws_errors "github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/errors"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/iam"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/limiter"
	s3adapter "github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/s3"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/shared"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/config"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/domain"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/service"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/log"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/record"
	jsonreport "github.com/olusolaa/bedrock-kb-provisioner/internal/reporting/json"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/reporting/text"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/steps"
)

// BuildApplicationFromViper wires the whole application: config, logger, AWS
// clients, the step chain, the record store, and the pipeline.
func BuildApplicationFromViper(ctx context.Context, v *viper.Viper) (*Application, error) {
	cfg := config.DefaultConfig()
	decodeDurations := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, decodeDurations); err != nil {
		return nil, errors.Wrap(err, errors.CodeConfigParseError, "failed to unmarshal configuration")
	}
	cfg.ResolveNames()

	logger, err := log.NewLogger(log.Config{Level: cfg.Settings.LogLevel, Format: cfg.Settings.LogFormat})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "logger initialization failed")
	}
	logger.Infof(ctx, "Logger initialized (Level: %s, Format: %s)", cfg.Settings.LogLevel, cfg.Settings.LogFormat)
	if v.ConfigFileUsed() != "" {
		logger.Debugf(ctx, "Using configuration file: %s", v.ConfigFileUsed())
	}

	if err := validateConfig(ctx, cfg); err != nil {
		logger.Errorf(ctx, err, "Configuration validation failed")
		return nil, err
	}
	logger.Debugf(ctx, "Configuration validated successfully")

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	identity, err := callerIdentity(ctx, sts.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}
	logger.Infof(ctx, "Authenticated as %s (account %s, region %s)",
		identity.arn, identity.accountID, cfg.AWS.Region)

	rl := limiter.New(cfg.Settings.RequestsPerSecond, logger)

	iamHandler := iam.NewHandler(awsCfg, rl, logger.WithFields(map[string]any{"service": "iam"}))
	aossHandler := aoss.NewHandler(awsCfg, rl, logger.WithFields(map[string]any{"service": "aoss"}))
	indexClient := aoss.NewIndexClient(awsCfg, rl, logger.WithFields(map[string]any{"service": "aoss-data"}))
	bedrockHandler := bedrock.NewHandler(awsCfg, rl, logger.WithFields(map[string]any{"service": "bedrock-agent"}))
	s3Handler := s3adapter.NewHandler(awsCfg, rl, logger.WithFields(map[string]any{"service": "s3"}))

	chain := []ports.Step{
		steps.NewExecutionRole(iamHandler, cfg.Names.Role),
		steps.NewRolePolicies(iamHandler, aossHandler,
			steps.PolicyNames{
				Encryption: cfg.Names.EncryptionPolicy,
				Network:    cfg.Names.NetworkPolicy,
				Access:     cfg.Names.AccessPolicy,
				Inline:     cfg.Names.InlinePolicy,
			},
			cfg.Names.Collection,
			cfg.CollectionResource(identity.accountID),
			cfg.EmbeddingModelARN(),
			cfg.Source.Bucket,
			identity.arn,
		),
		steps.NewVectorCollection(aossHandler, cfg.Names.Collection),
		steps.NewVectorIndex(indexClient, cfg.Names.Index, cfg.Embedding.VectorField, cfg.Embedding.Dimension),
		steps.NewKnowledgeBase(bedrockHandler, cfg.Names.KnowledgeBase, cfg.EmbeddingModelARN(), cfg.Embedding.VectorField),
		steps.NewDataSource(bedrockHandler, s3Handler, cfg.Names.DataSource, cfg.Source.Bucket),
	}

	store := buildRecordStore(cfg, awsCfg, logger)

	rec := domain.NewRecord()
	if entries, loadErr := store.Load(ctx); loadErr == nil {
		rec.Seed(entries)
		logger.Infof(ctx, "Loaded existing provisioning record (%d entries), resuming", rec.Len())
	} else if !errors.Is(loadErr, errors.CodeResourceNotFound) {
		logger.Warnf(ctx, "Could not load existing record, starting fresh: %v", loadErr)
	}

	pipeline, err := service.NewPipeline(chain, cfg.Timings.Steps, cfg.Timings.Default,
		aws_errors.Classify, rec, store, logger.WithFields(map[string]any{"component": "pipeline"}))
	if err != nil {
		return nil, err
	}

	inspector, err := service.NewInspector(chain, store, logger.WithFields(map[string]any{"component": "inspector"}))
	if err != nil {
		return nil, err
	}

	reporter, err := buildReporter(cfg, logger)
	if err != nil {
		return nil, err
	}

	logger.Debugf(ctx, "Application bootstrap complete")
	return &Application{
		Config:    cfg,
		Logger:    logger,
		Pipeline:  pipeline,
		Inspector: inspector,
		Reporter:  reporter,
	}, nil
}

func validateConfig(ctx context.Context, cfg *config.Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	err := validate.StructCtx(ctx, cfg)
	if err == nil {
		return nil
	}

	var details strings.Builder
	details.WriteString("Configuration validation failed:")
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range validationErrors {
			details.WriteString(fmt.Sprintf("\n - Field '%s': failed '%s' validation (value: '%v')",
				fe.Namespace(), fe.Tag(), fe.Value()))
		}
	} else {
		details.WriteString("\n - " + err.Error())
	}
	return errors.NewUserFacing(errors.CodeConfigValidation, details.String(),
		"Check your configuration file or flags.")
}

func loadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWS.Region),
	}
	if cfg.AWS.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, errors.WrapUserFacing(err, errors.CodePlatformAuthError,
			"failed to load AWS configuration",
			"Check your AWS credentials, profile, and region settings.")
	}
	return awsCfg, nil
}

type identityInfo struct {
	accountID string
	arn       string
}

func callerIdentity(ctx context.Context, client shared.STSClientInterface) (identityInfo, error) {
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return identityInfo{}, errors.WrapUserFacing(err, errors.CodePlatformAuthError,
			"failed to resolve AWS caller identity",
			"Verify that your credentials are valid and not expired.")
	}
	return identityInfo{
		accountID: aws.ToString(out.Account),
		arn:       aws.ToString(out.Arn),
	}, nil
}

func buildRecordStore(cfg *config.Config, awsCfg aws.Config, logger ports.Logger) ports.RecordStore {
	extra := map[string]string{"Region": cfg.AWS.Region}
	storeLogger := logger.WithFields(map[string]any{"component": "record"})

	var local ports.RecordStore
	switch cfg.Record.Format {
	case record.StoreTypeJSON:
		local = record.NewJSONStore(record.JSONConfig{Path: cfg.Record.Path}, extra, storeLogger)
	default:
		local = record.NewFileStore(record.FileConfig{Path: cfg.Record.Path}, extra, storeLogger)
	}

	if cfg.Record.S3 == nil {
		return local
	}
	remote := record.NewS3Store(
		record.S3Config{Bucket: cfg.Record.S3.Bucket, Key: cfg.Record.S3.Key},
		awss3.NewFromConfig(awsCfg), extra, storeLogger)
	return record.NewMulti(local, remote)
}

func buildReporter(cfg *config.Config, logger ports.Logger) (ports.Reporter, error) {
	switch cfg.Settings.ReporterType {
	case jsonreport.ReporterTypeJSON:
		return jsonreport.NewReporter(jsonreport.Config{Pretty: true},
			logger.WithFields(map[string]any{"component": "reporter"}))
	default:
		return text.NewReporter(text.Config{},
			logger.WithFields(map[string]any{"component": "reporter"}))
	}
}
