// Package access holds the collection access rules shared with the CMS and
// verifies the session tokens the CMS issues to admin users.
package access

// Role is the role field saved on a CMS user.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleUser   Role = "user"
)

// User is the authenticated principal carried by a session token.
type User struct {
	ID         string
	Email      string
	Collection string
	Role       Role
}

// HasRole reports whether u is authenticated and carries any role.
func HasRole(u *User) bool {
	return u != nil && u.Role != ""
}

// Operation is a collection operation.
type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Rule decides whether u may perform an operation. u is nil for anonymous
// requests.
type Rule func(u *User) bool

// Public allows everyone, including anonymous requests.
func Public(*User) bool { return true }

// Roles allows authenticated users holding one of roles.
func Roles(roles ...Role) Rule {
	return func(u *User) bool {
		if !HasRole(u) {
			return false
		}
		for _, r := range roles {
			if u.Role == r {
				return true
			}
		}
		return false
	}
}

// Collection is the access policy of one CMS collection. A nil rule denies.
type Collection struct {
	Read, Create, Update, Delete Rule
}

// Allows evaluates the rule for op.
func (c Collection) Allows(op Operation, u *User) bool {
	var rule Rule
	switch op {
	case OpRead:
		rule = c.Read
	case OpCreate:
		rule = c.Create
	case OpUpdate:
		rule = c.Update
	case OpDelete:
		rule = c.Delete
	}
	return rule != nil && rule(u)
}

// Media: public read, owners and admins upload and edit, only owners delete.
var Media = Collection{
	Read:   Public,
	Create: Roles(RoleOwner, RoleAdmin),
	Update: Roles(RoleOwner, RoleAdmin),
	Delete: Roles(RoleOwner),
}

// Docs follows the media policy; editors may also update existing pages.
var Docs = Collection{
	Read:   Public,
	Create: Roles(RoleOwner, RoleAdmin),
	Update: Roles(RoleOwner, RoleAdmin, RoleEditor),
	Delete: Roles(RoleOwner),
}
