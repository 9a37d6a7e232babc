package domain

// Role enumerates account roles issued by the identity provider.
type Role string

const (
	RoleUser         Role = "USER"
	RoleHelperJunior Role = "HELPER_JUNIOR"
	RoleHelperSenior Role = "HELPER_SENIOR"
	RolePM           Role = "PM"
	RoleAdmin        Role = "ADMIN"
)

// IsStaff reports whether the role belongs to an internal operator.
func (r Role) IsStaff() bool {
	switch r {
	case RoleHelperJunior, RoleHelperSenior, RolePM, RoleAdmin:
		return true
	}
	return false
}

// IsHelper reports whether the role is one of the two helper tiers.
func (r Role) IsHelper() bool {
	return r == RoleHelperJunior || r == RoleHelperSenior
}

// rolePrecedence orders roles from weakest to strongest.
var rolePrecedence = map[Role]int{
	RoleUser:         0,
	RoleHelperJunior: 1,
	RoleHelperSenior: 2,
	RolePM:           3,
	RoleAdmin:        4,
}

// ParseRole maps a raw role name to a known Role.
func ParseRole(name string) (Role, bool) {
	r := Role(name)
	_, ok := rolePrecedence[r]
	return r, ok
}

// Actor is the authenticated caller, resolved once per session from the
// identity provider and immutable afterwards.
type Actor struct {
	ID    string
	Email string
	Roles []Role
}

// Role returns the strongest role the actor holds. Actors without any
// recognized role degrade to USER, which the policy treats as the most
// restrictive case.
func (a Actor) Role() Role {
	best := RoleUser
	for _, r := range a.Roles {
		if rolePrecedence[r] > rolePrecedence[best] {
			best = r
		}
	}
	return best
}

// HasRole reports whether the actor holds the given role.
func (a Actor) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsStaff reports whether the actor's effective role is a staff role.
func (a Actor) IsStaff() bool {
	return a.Role().IsStaff()
}
