// Package identity carries the caller identity resolved by the auth layer.
// The core trusts this input; token verification happens upstream.
package identity

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAdmin
}

type User struct {
	ID   string
	Role Role
}
