package errors

type Code string

const (
	CodeUnknown          Code = "UNKNOWN"
	CodeInternal         Code = "INTERNAL_ERROR"
	CodeConfigValidation Code = "CONFIG_VALIDATION_ERROR"
	CodeConfigReadError  Code = "CONFIG_READ_ERROR"
	CodeConfigParseError Code = "CONFIG_PARSE_ERROR"
	CodeConfigNotFound   Code = "CONFIG_NOT_FOUND"

	// Provisioning error taxonomy. Permanent errors are never retried;
	// TransientExhausted means a retryable error outlived its attempt budget.
	CodePermanent            Code = "PERMANENT_ERROR"
	CodeTransientExhausted   Code = "TRANSIENT_EXHAUSTED"
	CodeResourceFailed       Code = "RESOURCE_FAILED"
	CodeProvisioningTimeout  Code = "PROVISIONING_TIMEOUT"
	CodeUnresolvedDependency Code = "UNRESOLVED_DEPENDENCY"
	CodeCyclicDependency     Code = "CYCLIC_DEPENDENCY"

	CodePlatformAPIError  Code = "PLATFORM_API_ERROR"
	CodePlatformAuthError Code = "PLATFORM_AUTH_ERROR"
	CodeResourceNotFound  Code = "RESOURCE_NOT_FOUND"
	CodeRecordIOError     Code = "RECORD_IO_ERROR"
	CodeRecordParseError  Code = "RECORD_PARSE_ERROR"
	CodeTimeout           Code = "TIMEOUT_ERROR"
)

func (c Code) String() string {
	return string(c)
}
