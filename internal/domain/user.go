package domain

import "time"

// UserRole enumerates account roles.
type UserRole string

const (
	RoleStudent UserRole = "STUDENT"
	RoleStaff   UserRole = "STAFF"
	RoleAdmin   UserRole = "ADMIN"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// CanEscalate reports whether the role may raise escalations manually.
func (r UserRole) CanEscalate() bool {
	return r == RoleStaff || r == RoleAdmin
}

// User is a staff directory entry; students, staff and admins share the table.
type User struct {
	ID            string
	Name          string
	Email         string
	Role          UserRole
	StaffVertical *StaffVertical
	HostelBlock   *string
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MaxActiveTickets resolves the capacity ceiling from the user's vertical.
func (u *User) MaxActiveTickets() int {
	if u.StaffVertical == nil {
		return DefaultMaxActiveTickets
	}
	return u.StaffVertical.MaxActiveTickets()
}

// CanHandleEmergencies reports whether the user's vertical takes emergency work.
func (u *User) CanHandleEmergencies() bool {
	return u.StaffVertical != nil && u.StaffVertical.CanHandleEmergencies()
}

// Actor identifies who performs an operation. Identity checks beyond what the
// core needs belong to the HTTP layer.
type Actor struct {
	ID   string
	Role UserRole
}

// SystemActor is used for automatic operations such as the escalation scan.
var SystemActor = Actor{ID: "", Role: RoleAdmin}

// IsSystem reports whether the actor is the automatic system actor.
func (a Actor) IsSystem() bool {
	return a.ID == ""
}

// IDPtr returns nil for the system actor.
func (a Actor) IDPtr() *string {
	if a.IsSystem() {
		return nil
	}
	id := a.ID
	return &id
}
