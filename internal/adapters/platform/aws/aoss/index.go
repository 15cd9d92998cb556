package aoss

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/shared"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/core/ports"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
)

// There is no control-plane API for indexes inside a serverless collection;
// they are created through the collection's data-plane endpoint with
// SigV4-signed OpenSearch REST calls (service name "aoss").

const (
	textChunkField = "AMAZON_BEDROCK_TEXT_CHUNK"
	metadataField  = "AMAZON_BEDROCK_METADATA"
)

// HTTPDoer lets tests substitute the transport.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type IndexClient struct {
	httpClient HTTPDoer
	signer     *v4.Signer
	creds      aws.CredentialsProvider
	region     string
	limiter    shared.RateLimiter
	logger     ports.Logger
}

type IndexClientOption func(*IndexClient)

func WithHTTPClient(doer HTTPDoer) IndexClientOption {
	return func(c *IndexClient) {
		if doer != nil {
			c.httpClient = doer
		}
	}
}

func NewIndexClient(cfg aws.Config, limiter shared.RateLimiter, logger ports.Logger, opts ...IndexClientOption) *IndexClient {
	c := &IndexClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		signer:     v4.NewSigner(),
		creds:      cfg.Credentials,
		region:     cfg.Region,
		limiter:    limiter,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type indexSettings struct {
	Settings struct {
		Index struct {
			KNN      bool `json:"knn"`
			EfSearch int  `json:"knn.algo_param.ef_search"`
		} `json:"index"`
	} `json:"settings"`
	Mappings struct {
		Properties map[string]any `json:"properties"`
	} `json:"mappings"`
}

func indexBody(vectorField string, dimension int) ([]byte, error) {
	var doc indexSettings
	doc.Settings.Index.KNN = true
	doc.Settings.Index.EfSearch = 512
	doc.Mappings.Properties = map[string]any{
		vectorField: map[string]any{
			"type":      "knn_vector",
			"dimension": dimension,
			"method": map[string]any{
				"name":       "hnsw",
				"engine":     "faiss",
				"space_type": "l2",
			},
		},
		textChunkField: map[string]any{"type": "text"},
		metadataField:  map[string]any{"type": "text", "index": false},
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to encode index mapping")
	}
	return data, nil
}

// IndexExists probes the collection endpoint for the index.
func (c *IndexClient) IndexExists(ctx context.Context, endpoint, index string) (bool, error) {
	resp, err := c.do(ctx, http.MethodHead, endpoint, index, nil)
	if err != nil {
		return false, err
	}
	defer drainAndClose(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, statusError("HEAD", index, resp, nil)
	}
}

// CreateIndex creates the k-NN index with the Bedrock field mapping. A
// concurrent or earlier creation winning the race is not an error.
func (c *IndexClient) CreateIndex(ctx context.Context, endpoint, index, vectorField string, dimension int) error {
	body, err := indexBody(vectorField, dimension)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodPut, endpoint, index, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.logger.Debugf(ctx, "Created index %s (dimension %d)", index, dimension)
		return nil
	}

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if strings.Contains(string(payload), "resource_already_exists_exception") {
		return nil
	}
	return statusError("PUT", index, resp, payload)
}

func (c *IndexClient) do(ctx context.Context, method, endpoint, index string, body []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := strings.TrimSuffix(endpoint, "/") + "/" + index
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to build index request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	sum := sha256.Sum256(body)
	payloadHash := hex.EncodeToString(sum[:])

	creds, err := c.creds.Retrieve(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePlatformAuthError, "failed to resolve AWS credentials")
	}
	if err := c.signer.SignHTTP(ctx, creds, req, payloadHash, serviceName, c.region, time.Now()); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to sign index request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodePlatformAPIError,
			"index %s request to collection endpoint failed", method)
	}
	return resp, nil
}

func statusError(method, index string, resp *http.Response, payload []byte) error {
	code := apperrors.CodePlatformAPIError
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		code = apperrors.CodePlatformAuthError
	case http.StatusNotFound:
		code = apperrors.CodeResourceNotFound
	}
	detail := ""
	if len(payload) > 0 {
		detail = ": " + string(payload)
	}
	return apperrors.Newf(code, "%s index/%s returned HTTP %d%s", method, index, resp.StatusCode, detail)
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
