package model

// Roles carried in the access token's "role" claim.
const (
	RoleParticipant = "PARTICIPANT"
	RoleOrganizer   = "ORGANIZER"
)

// Identity is the authenticated caller as established by the JWT
// middleware.  Accounts themselves live with the identity provider;
// this service only stores user IDs.
type Identity struct {
	UserID uint64
	Role   string
}

// IsParticipant reports whether the caller may reserve and pay.
func (i Identity) IsParticipant() bool { return i.UserID != 0 && i.Role == RoleParticipant }

// IsOrganizer reports whether the caller may publish events.
func (i Identity) IsOrganizer() bool { return i.UserID != 0 && i.Role == RoleOrganizer }
