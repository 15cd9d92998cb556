package config

import (
	"fmt"
	"time"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/service"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/log"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/poll"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/retry"
)

type Config struct {
	Settings  SettingsConfig  `yaml:"settings" mapstructure:"settings"`
	AWS       AWSConfig       `yaml:"aws" mapstructure:"aws"`
	Names     NamesConfig     `yaml:"names" mapstructure:"names"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Source    SourceConfig    `yaml:"source" mapstructure:"source"`
	Record    RecordConfig    `yaml:"record" mapstructure:"record"`
	Timings   TimingsConfig   `yaml:"timings" mapstructure:"timings"`
}

type SettingsConfig struct {
	LogLevel     log.Level  `yaml:"log_level" mapstructure:"log_level"`
	LogFormat    log.Format `yaml:"log_format" mapstructure:"log_format"`
	ReporterType string     `yaml:"reporter" mapstructure:"reporter" validate:"omitempty,oneof=text json"`
	// RequestsPerSecond caps control-plane calls across all handlers.
	RequestsPerSecond int `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"omitempty,min=1,max=100"`
}

type AWSConfig struct {
	Region  string `yaml:"region" mapstructure:"region" validate:"required"`
	Profile string `yaml:"profile" mapstructure:"profile"`
}

// NamesConfig names every resource the pipeline owns. Empty fields fall back
// to defaults; Suffix is appended to defaulted names so several deployments
// can share one account without colliding.
type NamesConfig struct {
	Suffix string `yaml:"suffix" mapstructure:"suffix"`

	Role          string `yaml:"role" mapstructure:"role"`
	Collection    string `yaml:"collection" mapstructure:"collection" validate:"omitempty,min=3,max=32,lowercase"`
	Index         string `yaml:"index" mapstructure:"index"`
	KnowledgeBase string `yaml:"knowledge_base" mapstructure:"knowledge_base"`
	DataSource    string `yaml:"data_source" mapstructure:"data_source"`

	EncryptionPolicy string `yaml:"encryption_policy" mapstructure:"encryption_policy"`
	NetworkPolicy    string `yaml:"network_policy" mapstructure:"network_policy"`
	AccessPolicy     string `yaml:"access_policy" mapstructure:"access_policy"`
	InlinePolicy     string `yaml:"inline_policy" mapstructure:"inline_policy"`
}

type EmbeddingConfig struct {
	// ModelID picks the foundation model; the ARN is derived from it and the
	// region unless ModelARN overrides it outright.
	ModelID     string `yaml:"model_id" mapstructure:"model_id"`
	ModelARN    string `yaml:"model_arn" mapstructure:"model_arn"`
	Dimension   int    `yaml:"dimension" mapstructure:"dimension" validate:"omitempty,min=1,max=4096"`
	VectorField string `yaml:"vector_field" mapstructure:"vector_field"`
}

type SourceConfig struct {
	Bucket string `yaml:"bucket" mapstructure:"bucket" validate:"required"`
}

type RecordConfig struct {
	// Format selects the local store: "file" (flat key = value text) or
	// "json".
	Format string          `yaml:"format" mapstructure:"format" validate:"omitempty,oneof=file json"`
	Path   string          `yaml:"path" mapstructure:"path"`
	S3     *S3RecordConfig `yaml:"s3,omitempty" mapstructure:"s3"`
}

// S3RecordConfig mirrors the record to an object so other machines (e.g. the
// retrieval app) can read it.
type S3RecordConfig struct {
	Bucket string `yaml:"bucket" mapstructure:"bucket" validate:"required"`
	Key    string `yaml:"key" mapstructure:"key" validate:"required"`
}

type TimingsConfig struct {
	Default service.StepTiming            `yaml:"default" mapstructure:"default"`
	Steps   map[string]service.StepTiming `yaml:"steps" mapstructure:"steps"`
}

func DefaultConfig() *Config {
	return &Config{
		Settings: SettingsConfig{
			LogLevel:          log.LevelInfo,
			LogFormat:         log.FormatText,
			ReporterType:      "text",
			RequestsPerSecond: 10,
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Embedding: EmbeddingConfig{
			ModelID:     "amazon.titan-embed-text-v2:0",
			Dimension:   1024,
			VectorField: "bedrock-knowledge-base-default-vector",
		},
		Record: RecordConfig{
			Format: "file",
			Path:   ".aoss_config.txt",
		},
		Timings: TimingsConfig{
			Default: service.DefaultStepTiming(),
			Steps: map[string]service.StepTiming{
				// Collection creation routinely takes several minutes;
				// everything else settles in seconds.
				"vector-collection": {
					Retry: retry.DefaultConfig(),
					Poll:  poll.Config{Interval: 30 * time.Second, Timeout: 20 * time.Minute},
				},
				"execution-role": {
					Retry: retry.DefaultConfig(),
					Poll:  poll.Config{Interval: 5 * time.Second, Timeout: 2 * time.Minute},
				},
				"role-policies": {
					Retry: retry.DefaultConfig(),
					Poll:  poll.Config{Interval: 5 * time.Second, Timeout: 2 * time.Minute},
				},
				"vector-index": {
					Retry: retry.DefaultConfig(),
					Poll:  poll.Config{Interval: 10 * time.Second, Timeout: 5 * time.Minute},
				},
			},
		},
	}
}

// ResolveNames fills empty name fields with suffixed defaults.
func (c *Config) ResolveNames() {
	apply := func(field *string, base string) {
		if *field != "" {
			return
		}
		if c.Names.Suffix != "" {
			*field = base + "-" + c.Names.Suffix
			return
		}
		*field = base
	}

	apply(&c.Names.Role, "bedrock-kb-execution-role")
	apply(&c.Names.Collection, "bedrock-kb-collection")
	apply(&c.Names.Index, "bedrock-kb-default-index")
	apply(&c.Names.KnowledgeBase, "bedrock-knowledge-base")
	apply(&c.Names.DataSource, "bedrock-kb-s3-source")
	apply(&c.Names.EncryptionPolicy, "bedrock-kb-encryption-policy")
	apply(&c.Names.NetworkPolicy, "bedrock-kb-network-policy")
	apply(&c.Names.AccessPolicy, "bedrock-kb-access-policy")
	apply(&c.Names.InlinePolicy, "bedrock-kb-execution-policy")
}

// EmbeddingModelARN returns the configured ARN, deriving it from the model
// ID and region when no explicit override is set. Foundation-model ARNs have
// no account segment.
func (c *Config) EmbeddingModelARN() string {
	if c.Embedding.ModelARN != "" {
		return c.Embedding.ModelARN
	}
	return fmt.Sprintf("arn:aws:bedrock:%s::foundation-model/%s", c.AWS.Region, c.Embedding.ModelID)
}

// CollectionResource returns the ARN pattern the role's inline policy grants
// aoss access to. The collection does not exist when the policy is written,
// so the resource is scoped to all collections in the account.
func (c *Config) CollectionResource(accountID string) string {
	return fmt.Sprintf("arn:aws:aoss:%s:%s:collection/*", c.AWS.Region, accountID)
}

// Timing returns the retry/poll configuration for a step, falling back to
// the default block.
func (c *Config) Timing(step string) service.StepTiming {
	if t, ok := c.Timings.Steps[step]; ok {
		return t
	}
	return c.Timings.Default
}
