// Package record persists the provisioning record for downstream retrieval
// tooling. Stores are written incrementally during a run, so the record on
// disk is always the latest consistent prefix of the pipeline.
package record

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"context"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/domain"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
)

const StoreTypeFile = "file"

// aliases are the flat key names the downstream retrieval app reads. They
// are written alongside the canonical dotted keys and skipped on Load.
var aliases = map[string]string{
	domain.StepVectorCollection + "." + domain.KeyCollectionEndpoint: "AOSS_host_name",
	domain.StepVectorIndex + "." + domain.KeyIndexName:               "AOSS_index_name",
	domain.StepKnowledgeBase + "." + domain.KeyKnowledgeBaseID:       "KB_id",
	domain.StepDataSource + "." + domain.KeyDataSourceID:             "DS_id",
	domain.StepDataSource + "." + domain.KeySourceBucket:             "S3_bucket",
}

type FileConfig struct {
	Path string `yaml:"path" mapstructure:"path" validate:"required"`
}

// FileStore renders the record as flat "key = value" text. Canonical entries
// use dotted step.output keys; well-known outputs are duplicated under the
// alias names consumed by the retrieval app.
type FileStore struct {
	path   string
	extra  map[string]string // static entries, e.g. Region
	logger ports.Logger
}

func NewFileStore(cfg FileConfig, extra map[string]string, logger ports.Logger) *FileStore {
	return &FileStore{path: cfg.Path, extra: extra, logger: logger}
}

func (s *FileStore) Type() string {
	return StoreTypeFile
}

func (s *FileStore) Save(ctx context.Context, record *domain.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lines := renderLines(record, s.extra)

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".record-*")
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeRecordIOError, "failed to create temp record file")
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			tmp.Close()
			return apperrors.Wrap(err, apperrors.CodeRecordIOError, "failed to write record")
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return apperrors.Wrap(err, apperrors.CodeRecordIOError, "failed to flush record")
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Wrap(err, apperrors.CodeRecordIOError, "failed to close record file")
	}

	// Rename so a crash mid-write never leaves a truncated record behind.
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return apperrors.Wrap(err, apperrors.CodeRecordIOError, "failed to replace record file")
	}

	s.logger.Debugf(ctx, "Record saved to %s (%d entries)", s.path, record.Len())
	return nil
}

func (s *FileStore) Load(ctx context.Context) (map[string]domain.Outputs, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Wrapf(err, apperrors.CodeResourceNotFound,
				"no provisioning record at %s", s.path)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeRecordIOError, "failed to open record file")
	}
	defer f.Close()

	aliasNames := make(map[string]struct{}, len(aliases))
	for _, alias := range aliases {
		aliasNames[alias] = struct{}{}
	}

	entries := make(map[string]domain.Outputs)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, apperrors.Newf(apperrors.CodeRecordParseError,
				"malformed record line: %q", line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if _, isAlias := aliasNames[key]; isAlias {
			continue
		}
		step, output, dotted := strings.Cut(key, ".")
		if !dotted {
			// Static extras (Region etc.) carry no step grouping.
			continue
		}
		if entries[step] == nil {
			entries[step] = make(domain.Outputs)
		}
		entries[step][output] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeRecordIOError, "failed to read record file")
	}

	return entries, nil
}

func renderLines(record *domain.Record, extra map[string]string) []string {
	entries := record.Entries()

	var lines []string
	for step, outputs := range entries {
		for key, value := range outputs {
			dotted := step + "." + key
			lines = append(lines, fmt.Sprintf("%s = %s", dotted, value))
			if alias, ok := aliases[dotted]; ok {
				lines = append(lines, fmt.Sprintf("%s = %s", alias, value))
			}
		}
	}
	for key, value := range extra {
		lines = append(lines, fmt.Sprintf("%s = %s", key, value))
	}
	sort.Strings(lines)
	return lines
}
