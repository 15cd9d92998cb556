package domain

// ResourceStatus is the normalized lifecycle state of a provisioned resource.
// Vendor-specific status strings are mapped into one of these by each adapter.
type ResourceStatus string

const (
	StatusCreating ResourceStatus = "CREATING"
	StatusActive   ResourceStatus = "ACTIVE"
	StatusFailed   ResourceStatus = "FAILED"
	StatusUnknown  ResourceStatus = "UNKNOWN"
)

func (s ResourceStatus) String() string {
	return string(s)
}

// StatusSnapshot is a point-in-time view of a resource's state. It is never
// persisted; Detail carries the raw vendor status for diagnostics.
type StatusSnapshot struct {
	Status ResourceStatus
	Detail string
	// Outputs holds identifiers readable from the snapshot itself
	// (endpoints, ARNs). Populated once the resource is describable.
	Outputs Outputs
}

func (s StatusSnapshot) Ready() bool {
	return s.Status == StatusActive
}

func (s StatusSnapshot) Failed() bool {
	return s.Status == StatusFailed
}
