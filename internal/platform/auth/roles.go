package auth

import "strings"

// Role is an ordered authority level. Higher roles inherit every permission
// of the roles below them, so authorization checks reduce to a >= comparison.
type Role int

const (
	// RoleFacility is the base level: any authenticated facility user.
	RoleFacility Role = iota
	RoleStoreroomManager
	RoleWarehouseManager
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleFacility:         "FACILITY_USER",
	RoleStoreroomManager: "STOREROOM_MANAGER",
	RoleWarehouseManager: "WAREHOUSE_MANAGER",
	RoleAdmin:            "ADMIN",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "FACILITY_USER"
}

// AtLeast reports whether the role carries the authority of min.
func (r Role) AtLeast(min Role) bool {
	return r >= min
}

// ParseRole maps a role name to its level. Unrecognized names resolve to the
// base facility level rather than failing: the mock accepts any role string a
// client configures and only elevates the ones it knows.
func ParseRole(name string) Role {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "ADMIN", "ADMINISTRATOR":
		return RoleAdmin
	case "WAREHOUSE_MANAGER":
		return RoleWarehouseManager
	case "STOREROOM_MANAGER":
		return RoleStoreroomManager
	default:
		return RoleFacility
	}
}
