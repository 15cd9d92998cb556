package aoss

import (
	jsoniter "github.com/json-iterator/go"

	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OpenSearch Serverless policies are JSON documents with a shape of their
// own, unrelated to IAM policy documents.

type policyRule struct {
	ResourceType string   `json:"ResourceType"`
	Resource     []string `json:"Resource"`
	Permission   []string `json:"Permission,omitempty"`
}

type encryptionPolicy struct {
	Rules       []policyRule `json:"Rules"`
	AWSOwnedKey bool         `json:"AWSOwnedKey"`
}

type networkPolicy struct {
	Rules           []policyRule `json:"Rules"`
	AllowFromPublic bool         `json:"AllowFromPublic"`
}

type accessPolicy struct {
	Rules     []policyRule `json:"Rules"`
	Principal []string     `json:"Principal"`
}

// EncryptionPolicyDoc scopes an AWS-owned-key encryption policy to a single
// collection.
func EncryptionPolicyDoc(collectionName string) (string, error) {
	doc := encryptionPolicy{
		Rules: []policyRule{{
			ResourceType: "collection",
			Resource:     []string{"collection/" + collectionName},
		}},
		AWSOwnedKey: true,
	}
	return marshalDoc(doc)
}

// NetworkPolicyDoc opens the collection and its dashboard to public access,
// matching what the ingestion tooling expects.
func NetworkPolicyDoc(collectionName string) (string, error) {
	doc := []networkPolicy{{
		Rules: []policyRule{
			{
				ResourceType: "collection",
				Resource:     []string{"collection/" + collectionName},
			},
			{
				ResourceType: "dashboard",
				Resource:     []string{"collection/" + collectionName},
			},
		},
		AllowFromPublic: true,
	}}
	return marshalDoc(doc)
}

// DataAccessPolicyDoc grants the given principals (the execution role and
// the provisioning caller) full data-plane access to the collection and its
// indexes.
func DataAccessPolicyDoc(collectionName string, principals []string) (string, error) {
	doc := []accessPolicy{{
		Rules: []policyRule{
			{
				ResourceType: "collection",
				Resource:     []string{"collection/" + collectionName},
				Permission:   []string{"aoss:*"},
			},
			{
				ResourceType: "index",
				Resource:     []string{"index/" + collectionName + "/*"},
				Permission:   []string{"aoss:*"},
			},
		},
		Principal: principals,
	}}
	return marshalDoc(doc)
}

func marshalDoc(doc any) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "failed to encode AOSS policy document")
	}
	return string(data), nil
}
