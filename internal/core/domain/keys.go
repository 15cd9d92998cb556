package domain

// Step names of the fixed knowledge-base provisioning chain.
const (
	StepExecutionRole    = "execution-role"
	StepRolePolicies     = "role-policies"
	StepVectorCollection = "vector-collection"
	StepVectorIndex      = "vector-index"
	StepKnowledgeBase    = "knowledge-base"
	StepDataSource       = "data-source"
)

// Output keys produced by the steps above. Downstream retrieval tooling reads
// these from the persisted record, so they are part of the tool's contract.
const (
	// execution-role
	KeyRoleARN  = "role_arn"
	KeyRoleName = "role_name"

	// role-policies
	KeyEncryptionPolicyName = "encryption_policy_name"
	KeyNetworkPolicyName    = "network_policy_name"
	KeyAccessPolicyName     = "access_policy_name"

	// vector-collection
	KeyCollectionID       = "collection_id"
	KeyCollectionARN      = "collection_arn"
	KeyCollectionEndpoint = "collection_endpoint"

	// vector-index
	KeyIndexName          = "index_name"
	KeyVectorField        = "vector_field"
	KeyEmbeddingDimension = "embedding_dimension"

	// knowledge-base
	KeyKnowledgeBaseID  = "knowledge_base_id"
	KeyKnowledgeBaseARN = "knowledge_base_arn"

	// data-source
	KeyDataSourceID = "data_source_id"
	KeySourceBucket = "source_bucket"
)
