package domain

// OperationClass is the authorization scope of a profile operation.
type OperationClass int

const (
	OpUnknown OperationClass = iota
	OpSelfRead
	OpSelfWrite
	OpAdminOnly
)

func (c OperationClass) String() string {
	switch c {
	case OpSelfRead:
		return "self-read"
	case OpSelfWrite:
		return "self-write"
	case OpAdminOnly:
		return "admin-only"
	default:
		return "unknown"
	}
}
