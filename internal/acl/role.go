package acl

// Role is the membership class a principal is sorted into before any grant
// lookup. The literals are part of the persisted configuration format: grants
// are stored as "role:permission" pairs.
type Role string

const (
	// RoleAdmin covers authenticated users on the admin allowlist.
	RoleAdmin Role = "Admin"

	// RoleLoggedIn covers every other authenticated user.
	RoleLoggedIn Role = "Logged In"

	// RoleAnonymous covers unauthenticated requests.
	RoleAnonymous Role = "Anonymous"
)

// Roles lists the canonical roles in the order the administration UI and the
// persisted form present them.
var Roles = []Role{RoleAdmin, RoleLoggedIn, RoleAnonymous}

// Valid reports whether r is one of the canonical roles. Persisted
// configuration may mention other role names; those never match a classified
// principal and therefore grant nothing.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}
