package record_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/domain"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/log"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/record"
)

func sampleRecord() *domain.Record {
	rec := domain.NewRecord()
	rec.Merge(domain.StepVectorCollection, domain.Outputs{
		domain.KeyCollectionEndpoint: "https://abc123.us-east-1.aoss.amazonaws.com",
		domain.KeyCollectionID:       "abc123",
	})
	rec.Merge(domain.StepKnowledgeBase, domain.Outputs{
		domain.KeyKnowledgeBaseID: "KB12345",
	})
	rec.Merge(domain.StepDataSource, domain.Outputs{
		domain.KeyDataSourceID: "DS67890",
		domain.KeySourceBucket: "my-docs-bucket",
	})
	return rec
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record.txt")
	store := record.NewFileStore(record.FileConfig{Path: path},
		map[string]string{"Region": "us-east-1"}, log.Nop())

	rec := sampleRecord()
	require.NoError(t, store.Save(context.Background(), rec))

	entries, err := store.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, rec.Entries(), entries)
}

func TestFileStoreWritesAliasesForRetrievalApp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record.txt")
	store := record.NewFileStore(record.FileConfig{Path: path},
		map[string]string{"Region": "us-east-1"}, log.Nop())

	require.NoError(t, store.Save(context.Background(), sampleRecord()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)

	// The flat alias keys are the contract with the downstream reader.
	assert.Contains(t, content, "AOSS_host_name = https://abc123.us-east-1.aoss.amazonaws.com")
	assert.Contains(t, content, "KB_id = KB12345")
	assert.Contains(t, content, "DS_id = DS67890")
	assert.Contains(t, content, "S3_bucket = my-docs-bucket")
	assert.Contains(t, content, "Region = us-east-1")
}

func TestFileStoreLoadMissingFile(t *testing.T) {
	store := record.NewFileStore(record.FileConfig{Path: filepath.Join(t.TempDir(), "absent.txt")},
		nil, log.Nop())

	_, err := store.Load(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeResourceNotFound))
}

func TestFileStoreLoadRejectsMalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record.txt")
	require.NoError(t, os.WriteFile(path, []byte("this is not a key value pair\n"), 0o644))

	store := record.NewFileStore(record.FileConfig{Path: path}, nil, log.Nop())
	_, err := store.Load(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeRecordParseError))
}

func TestFileStoreLoadSkipsCommentsAndBlanks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record.txt")
	content := "# provisioning record\n\nknowledge-base.knowledge_base_id = KB1\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	store := record.NewFileStore(record.FileConfig{Path: path}, nil, log.Nop())
	entries, err := store.Load(context.Background())
	require.NoError(t, err)

	require.Contains(t, entries, domain.StepKnowledgeBase)
	assert.Equal(t, "KB1", entries[domain.StepKnowledgeBase][domain.KeyKnowledgeBaseID])
}

func TestFileStoreSaveOverwritesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record.txt")
	store := record.NewFileStore(record.FileConfig{Path: path}, nil, log.Nop())

	first := domain.NewRecord()
	first.Merge(domain.StepExecutionRole, domain.Outputs{domain.KeyRoleName: "old-role"})
	require.NoError(t, store.Save(context.Background(), first))

	second := domain.NewRecord()
	second.Merge(domain.StepExecutionRole, domain.Outputs{domain.KeyRoleName: "new-role"})
	require.NoError(t, store.Save(context.Background(), second))

	entries, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new-role", entries[domain.StepExecutionRole][domain.KeyRoleName])
}

func TestJSONStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record.json")
	store := record.NewJSONStore(record.JSONConfig{Path: path},
		map[string]string{"Region": "us-east-1"}, log.Nop())

	rec := sampleRecord()
	require.NoError(t, store.Save(context.Background(), rec))

	entries, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rec.Entries(), entries)
}

func TestJSONStoreLoadMissingFile(t *testing.T) {
	store := record.NewJSONStore(record.JSONConfig{Path: filepath.Join(t.TempDir(), "absent.json")},
		nil, log.Nop())

	_, err := store.Load(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeResourceNotFound))
}
