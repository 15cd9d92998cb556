package record

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/domain"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
)

const StoreTypeS3 = "s3"

type S3Config struct {
	Bucket string `yaml:"bucket" mapstructure:"bucket" validate:"required"`
	Key    string `yaml:"key" mapstructure:"key" validate:"required"`
}

// S3ClientInterface is the slice of the SDK client the store needs.
type S3ClientInterface interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store mirrors the JSON document to an S3 object so retrieval tooling
// running elsewhere can pick the record up without filesystem access.
type S3Store struct {
	cfg    S3Config
	client S3ClientInterface
	extra  map[string]string
	logger ports.Logger
}

func NewS3Store(cfg S3Config, client S3ClientInterface, extra map[string]string, logger ports.Logger) *S3Store {
	return &S3Store{cfg: cfg, client: client, extra: extra, logger: logger}
}

func (s *S3Store) Type() string {
	return StoreTypeS3
}

func (s *S3Store) Save(ctx context.Context, record *domain.Record) error {
	doc := jsonDocument{
		Entries:   record.Entries(),
		Extra:     s.extra,
		UpdatedAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeRecordIOError, "failed to encode record")
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(s.cfg.Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return apperrors.Wrapf(err, apperrors.CodeRecordIOError,
			"failed to upload record to s3://%s/%s", s.cfg.Bucket, s.cfg.Key)
	}

	s.logger.Debugf(ctx, "Record uploaded to s3://%s/%s (%d entries)",
		s.cfg.Bucket, s.cfg.Key, record.Len())
	return nil
}

func (s *S3Store) Load(ctx context.Context) (map[string]domain.Outputs, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.cfg.Key),
	})
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeRecordIOError,
			"failed to fetch record from s3://%s/%s", s.cfg.Bucket, s.cfg.Key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeRecordIOError, "failed to read record body")
	}

	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeRecordParseError, "failed to decode record")
	}
	return doc.Entries, nil
}

// Multi fans Save out to several stores; Load reads from the first. Used to
// keep a local file and an S3 mirror in step.
type Multi struct {
	stores []ports.RecordStore
}

func NewMulti(stores ...ports.RecordStore) *Multi {
	return &Multi{stores: stores}
}

func (m *Multi) Type() string {
	return "multi"
}

func (m *Multi) Save(ctx context.Context, record *domain.Record) error {
	for _, s := range m.stores {
		if err := s.Save(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (m *Multi) Load(ctx context.Context) (map[string]domain.Outputs, error) {
	if len(m.stores) == 0 {
		return nil, apperrors.New(apperrors.CodeInternal, "no record stores configured")
	}
	return m.stores[0].Load(ctx)
}
