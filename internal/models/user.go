package models

// Role represents the access level of a hospital user.
type Role string

const (
	RoleAdmin            Role = "admin"             // Hospital administrator
	RoleInventoryManager Role = "inventory_manager" // Manages stock levels and items
	RoleProcurement      Role = "procurement"       // Raises and tracks purchase orders
	RoleStaff            Role = "staff"             // General hospital staff
)

// Valid reports whether r is one of the roles the API accepts.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleInventoryManager, RoleProcurement, RoleStaff:
		return true
	}
	return false
}

// User is the authenticated principal as returned by the profile endpoint.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Role         Role   `json:"role"`
	HospitalName string `json:"hospital_name"`
}

// Clone returns a copy of the user, or nil for a nil user.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}
