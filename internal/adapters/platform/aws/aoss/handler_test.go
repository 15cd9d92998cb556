package aoss_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	oss "github.com/aws/aws-sdk-go-v2/service/opensearchserverless"
	osstypes "github.com/aws/aws-sdk-go-v2/service/opensearchserverless/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/adapters/platform/aws/aoss"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
	"github.com/olusolaa/bedrock-kb-provisioner/internal/log"
)

type nopLimiter struct{}

func (nopLimiter) Wait(ctx context.Context) error { return nil }

type notFoundError struct{}

func (notFoundError) Error() string     { return "ResourceNotFoundException" }
func (notFoundError) ErrorCode() string { return "ResourceNotFoundException" }

type fakeAOSSClient struct {
	createCollection     func(*oss.CreateCollectionInput) (*oss.CreateCollectionOutput, error)
	batchGetCollection   func(*oss.BatchGetCollectionInput) (*oss.BatchGetCollectionOutput, error)
	createSecurityPolicy func(*oss.CreateSecurityPolicyInput) (*oss.CreateSecurityPolicyOutput, error)
	getSecurityPolicy    func(*oss.GetSecurityPolicyInput) (*oss.GetSecurityPolicyOutput, error)
	createAccessPolicy   func(*oss.CreateAccessPolicyInput) (*oss.CreateAccessPolicyOutput, error)
	getAccessPolicy      func(*oss.GetAccessPolicyInput) (*oss.GetAccessPolicyOutput, error)
}

func (f *fakeAOSSClient) CreateCollection(ctx context.Context, params *oss.CreateCollectionInput, optFns ...func(*oss.Options)) (*oss.CreateCollectionOutput, error) {
	return f.createCollection(params)
}

func (f *fakeAOSSClient) BatchGetCollection(ctx context.Context, params *oss.BatchGetCollectionInput, optFns ...func(*oss.Options)) (*oss.BatchGetCollectionOutput, error) {
	return f.batchGetCollection(params)
}

func (f *fakeAOSSClient) CreateSecurityPolicy(ctx context.Context, params *oss.CreateSecurityPolicyInput, optFns ...func(*oss.Options)) (*oss.CreateSecurityPolicyOutput, error) {
	return f.createSecurityPolicy(params)
}

func (f *fakeAOSSClient) GetSecurityPolicy(ctx context.Context, params *oss.GetSecurityPolicyInput, optFns ...func(*oss.Options)) (*oss.GetSecurityPolicyOutput, error) {
	return f.getSecurityPolicy(params)
}

func (f *fakeAOSSClient) CreateAccessPolicy(ctx context.Context, params *oss.CreateAccessPolicyInput, optFns ...func(*oss.Options)) (*oss.CreateAccessPolicyOutput, error) {
	return f.createAccessPolicy(params)
}

func (f *fakeAOSSClient) GetAccessPolicy(ctx context.Context, params *oss.GetAccessPolicyInput, optFns ...func(*oss.Options)) (*oss.GetAccessPolicyOutput, error) {
	return f.getAccessPolicy(params)
}

func newHandler(client *fakeAOSSClient) *aoss.Handler {
	return aoss.NewHandler(aws.Config{}, nopLimiter{}, log.Nop(),
		aoss.WithClient(client))
}

func TestGetCollectionByName(t *testing.T) {
	client := &fakeAOSSClient{
		batchGetCollection: func(in *oss.BatchGetCollectionInput) (*oss.BatchGetCollectionOutput, error) {
			assert.Equal(t, []string{"docs-collection"}, in.Names)
			return &oss.BatchGetCollectionOutput{
				CollectionDetails: []osstypes.CollectionDetail{{
					Id:                 aws.String("abc123"),
					Arn:                aws.String("arn:aws:aoss:us-east-1:1:collection/abc123"),
					Name:               aws.String("docs-collection"),
					CollectionEndpoint: aws.String("https://abc123.us-east-1.aoss.amazonaws.com"),
				}},
			}, nil
		},
	}

	info, found, err := newHandler(client).GetCollectionByName(context.Background(), "docs-collection")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "abc123", info.ID)
	assert.Equal(t, "https://abc123.us-east-1.aoss.amazonaws.com", info.Endpoint)
}

func TestGetCollectionByNameAbsent(t *testing.T) {
	client := &fakeAOSSClient{
		batchGetCollection: func(*oss.BatchGetCollectionInput) (*oss.BatchGetCollectionOutput, error) {
			return &oss.BatchGetCollectionOutput{}, nil
		},
	}

	_, found, err := newHandler(client).GetCollectionByName(context.Background(), "docs-collection")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCreateCollectionRequestsVectorSearch(t *testing.T) {
	client := &fakeAOSSClient{
		createCollection: func(in *oss.CreateCollectionInput) (*oss.CreateCollectionOutput, error) {
			assert.Equal(t, osstypes.CollectionTypeVectorsearch, in.Type)
			return &oss.CreateCollectionOutput{
				CreateCollectionDetail: &osstypes.CreateCollectionDetail{
					Id:   aws.String("abc123"),
					Arn:  aws.String("arn:aws:aoss:us-east-1:1:collection/abc123"),
					Name: in.Name,
				},
			}, nil
		},
	}

	info, err := newHandler(client).CreateCollection(context.Background(), "docs-collection")
	require.NoError(t, err)
	assert.Equal(t, "abc123", info.ID)
	assert.Empty(t, info.Endpoint)
}

func TestDescribeCollectionActiveExposesEndpoint(t *testing.T) {
	client := &fakeAOSSClient{
		batchGetCollection: func(in *oss.BatchGetCollectionInput) (*oss.BatchGetCollectionOutput, error) {
			assert.Equal(t, []string{"abc123"}, in.Ids)
			return &oss.BatchGetCollectionOutput{
				CollectionDetails: []osstypes.CollectionDetail{{
					Id:                 aws.String("abc123"),
					Arn:                aws.String("arn:aws:aoss:us-east-1:1:collection/abc123"),
					Name:               aws.String("docs-collection"),
					CollectionEndpoint: aws.String("https://abc123.us-east-1.aoss.amazonaws.com"),
					Status:             osstypes.CollectionStatusActive,
				}},
			}, nil
		},
	}

	snap, err := newHandler(client).DescribeCollection(context.Background(), "abc123")
	require.NoError(t, err)
	assert.True(t, snap.Ready())
	assert.Equal(t, "https://abc123.us-east-1.aoss.amazonaws.com", snap.Outputs["collection_endpoint"])
}

func TestDescribeCollectionMissingIsNotFound(t *testing.T) {
	client := &fakeAOSSClient{
		batchGetCollection: func(*oss.BatchGetCollectionInput) (*oss.BatchGetCollectionOutput, error) {
			return &oss.BatchGetCollectionOutput{}, nil
		},
	}

	_, err := newHandler(client).DescribeCollection(context.Background(), "abc123")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeResourceNotFound))
}

func TestHasEncryptionPolicy(t *testing.T) {
	client := &fakeAOSSClient{
		getSecurityPolicy: func(in *oss.GetSecurityPolicyInput) (*oss.GetSecurityPolicyOutput, error) {
			assert.Equal(t, osstypes.SecurityPolicyTypeEncryption, in.Type)
			if aws.ToString(in.Name) == "present" {
				return &oss.GetSecurityPolicyOutput{}, nil
			}
			return nil, notFoundError{}
		},
	}
	h := newHandler(client)

	ok, err := h.HasEncryptionPolicy(context.Background(), "present")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.HasEncryptionPolicy(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

type fakeDoer struct {
	requests  []*http.Request
	responses []*http.Response
}

func (d *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	d.requests = append(d.requests, req)
	resp := d.responses[len(d.requests)-1]
	return resp, nil
}

func httpResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func newIndexClient(doer *fakeDoer) *aoss.IndexClient {
	cfg := aws.Config{
		Region: "us-east-1",
		Credentials: aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "AKID", SecretAccessKey: "SECRET"}, nil
		}),
	}
	return aoss.NewIndexClient(cfg, nopLimiter{}, log.Nop(), aoss.WithHTTPClient(doer))
}

func TestIndexExists(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{
		httpResponse(http.StatusOK, ""),
		httpResponse(http.StatusNotFound, ""),
	}}
	c := newIndexClient(doer)

	exists, err := c.IndexExists(context.Background(), "https://abc123.us-east-1.aoss.amazonaws.com", "docs-index")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = c.IndexExists(context.Background(), "https://abc123.us-east-1.aoss.amazonaws.com", "docs-index")
	require.NoError(t, err)
	assert.False(t, exists)

	req := doer.requests[0]
	assert.Equal(t, http.MethodHead, req.Method)
	assert.Equal(t, "/docs-index", req.URL.Path)
	assert.NotEmpty(t, req.Header.Get("Authorization"), "request must be SigV4 signed")
}

func TestCreateIndexSendsMapping(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{httpResponse(http.StatusOK, "")}}
	c := newIndexClient(doer)

	err := c.CreateIndex(context.Background(), "https://abc123.us-east-1.aoss.amazonaws.com", "docs-index",
		"bedrock-knowledge-base-default-vector", 1024)
	require.NoError(t, err)

	req := doer.requests[0]
	assert.Equal(t, http.MethodPut, req.Method)
	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"knn_vector"`)
	assert.Contains(t, string(body), `"dimension":1024`)
	assert.Contains(t, string(body), "AMAZON_BEDROCK_TEXT_CHUNK")
}

func TestCreateIndexToleratesAlreadyExists(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{
		httpResponse(http.StatusBadRequest, `{"error":{"type":"resource_already_exists_exception"}}`),
	}}
	c := newIndexClient(doer)

	err := c.CreateIndex(context.Background(), "https://abc123.us-east-1.aoss.amazonaws.com", "docs-index",
		"bedrock-knowledge-base-default-vector", 1024)
	assert.NoError(t, err)
}

func TestCreateIndexForbiddenIsAuthError(t *testing.T) {
	doer := &fakeDoer{responses: []*http.Response{
		httpResponse(http.StatusForbidden, `{"error":"no access policy"}`),
	}}
	c := newIndexClient(doer)

	err := c.CreateIndex(context.Background(), "https://abc123.us-east-1.aoss.amazonaws.com", "docs-index",
		"bedrock-knowledge-base-default-vector", 1024)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodePlatformAuthError))
}
