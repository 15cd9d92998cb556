package record

import (
	"context"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/domain"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
)

const StoreTypeJSON = "json"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type JSONConfig struct {
	Path string `yaml:"path" mapstructure:"path" validate:"required"`
}

type jsonDocument struct {
	Entries   map[string]domain.Outputs `json:"entries"`
	Extra     map[string]string         `json:"extra,omitempty"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// JSONStore persists the record as a structured document. Same content as
// the flat file store, friendlier to programmatic consumers.
type JSONStore struct {
	path   string
	extra  map[string]string
	logger ports.Logger
}

func NewJSONStore(cfg JSONConfig, extra map[string]string, logger ports.Logger) *JSONStore {
	return &JSONStore{path: cfg.Path, extra: extra, logger: logger}
}

func (s *JSONStore) Type() string {
	return StoreTypeJSON
}

func (s *JSONStore) Save(ctx context.Context, record *domain.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := jsonDocument{
		Entries:   record.Entries(),
		Extra:     s.extra,
		UpdatedAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeRecordIOError, "failed to encode record")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".record-*")
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeRecordIOError, "failed to create temp record file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return apperrors.Wrap(err, apperrors.CodeRecordIOError, "failed to write record")
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Wrap(err, apperrors.CodeRecordIOError, "failed to close record file")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return apperrors.Wrap(err, apperrors.CodeRecordIOError, "failed to replace record file")
	}

	s.logger.Debugf(ctx, "Record saved to %s (%d entries)", s.path, record.Len())
	return nil
}

func (s *JSONStore) Load(ctx context.Context) (map[string]domain.Outputs, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Wrapf(err, apperrors.CodeResourceNotFound,
				"no provisioning record at %s", s.path)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeRecordIOError, "failed to read record file")
	}

	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeRecordParseError, "failed to decode record")
	}
	return doc.Entries, nil
}
