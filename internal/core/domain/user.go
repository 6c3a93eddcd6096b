package domain

import "fmt"

type UserID string

type SessionID string

type UserRole string

const (
	RoleViewer  UserRole = "viewer"
	RoleCurator UserRole = "curator"
	RoleAdmin   UserRole = "admin"
)

// Identity is the verified caller attached to every request.
type Identity struct {
	UserID UserID
	Role   UserRole
}

func (i Identity) IsZero() bool {
	return i.UserID == ""
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Variant selects which of the role-specific profile documents an operation targets.
type Variant string

const (
	VariantViewer  Variant = "viewer"
	VariantCurator Variant = "curator"
	VariantAdmin   Variant = "admin"
)

func ParseVariant(s string) (Variant, error) {
	switch v := Variant(s); v {
	case VariantViewer, VariantCurator, VariantAdmin:
		return v, nil
	default:
		return "", fmt.Errorf("%w: unknown profile variant %q", ErrInvalidInput, s)
	}
}

// DocumentKey addresses one document in the profile store.
type DocumentKey struct {
	OwnerID UserID
	DocID   string
}

func (k DocumentKey) String() string {
	return k.DocID + "/" + string(k.OwnerID)
}

func ProfileKey(owner UserID, variant Variant) DocumentKey {
	return DocumentKey{OwnerID: owner, DocID: "profile:" + string(variant)}
}
