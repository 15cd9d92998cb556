package iam

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string            `json:"Effect"`
	Action    []string          `json:"Action"`
	Resource  []string          `json:"Resource,omitempty"`
	Principal map[string]string `json:"Principal,omitempty"`
}

const policyVersion = "2012-10-17"

// BedrockTrustPolicy allows the Bedrock service to assume the execution role.
func BedrockTrustPolicy() (string, error) {
	doc := policyDocument{
		Version: policyVersion,
		Statement: []policyStatement{{
			Effect:    "Allow",
			Action:    []string{"sts:AssumeRole"},
			Principal: map[string]string{"Service": "bedrock.amazonaws.com"},
		}},
	}
	return marshalPolicy(doc)
}

// ExecutionPolicy grants the knowledge-base role what ingestion needs: the
// embedding model, the vector collection, and read access to the source
// bucket.
func ExecutionPolicy(embeddingModelARN, collectionARN, sourceBucket string) (string, error) {
	doc := policyDocument{
		Version: policyVersion,
		Statement: []policyStatement{
			{
				Effect:   "Allow",
				Action:   []string{"bedrock:InvokeModel"},
				Resource: []string{embeddingModelARN},
			},
			{
				Effect:   "Allow",
				Action:   []string{"aoss:APIAccessAll"},
				Resource: []string{collectionARN},
			},
			{
				Effect: "Allow",
				Action: []string{"s3:GetObject", "s3:ListBucket"},
				Resource: []string{
					fmt.Sprintf("arn:aws:s3:::%s", sourceBucket),
					fmt.Sprintf("arn:aws:s3:::%s/*", sourceBucket),
				},
			},
		},
	}
	return marshalPolicy(doc)
}

func marshalPolicy(doc policyDocument) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "failed to encode IAM policy document")
	}
	return string(data), nil
}
