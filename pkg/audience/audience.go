// Package audience resolves logical target groups (all users, buyers,
// sellers, dealers, or one explicit recipient) into concrete delivery
// membership for the notification fan-out pipeline.
package audience

import (
	"errors"
	"fmt"

	"github.com/razaaliwebdev/sello/pkg/authctx"
)

var (
	// ErrUnknownAudience is returned for a selector string outside the
	// closed audience set.
	ErrUnknownAudience = errors.New("audience: unknown audience")

	// ErrRecipientNotFound is returned when an explicit recipient does not
	// resolve to a user. This is a client error, not a silent skip.
	ErrRecipientNotFound = errors.New("audience: recipient not found")

	// ErrMissingRecipient is returned when a user-targeted selector carries
	// neither a user ID nor an email.
	ErrMissingRecipient = errors.New("audience: recipient identity is required")
)

// Audience is the closed set of logical target groups.
type Audience string

const (
	All     Audience = "all"
	Buyers  Audience = "buyers"
	Sellers Audience = "sellers"
	Dealers Audience = "dealers"
	User    Audience = "user"
)

// Parse maps a wire string onto the closed audience set.
// Unknown values are an error so a typo can never fall through to an empty
// fan-out.
func Parse(s string) (Audience, error) {
	switch Audience(s) {
	case All:
		return All, nil
	case Buyers:
		return Buyers, nil
	case Sellers:
		return Sellers, nil
	case Dealers:
		return Dealers, nil
	case User:
		return User, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAudience, s)
	}
}

// Role returns the account kind matched by a role-scoped audience.
// Buyers and sellers share one underlying account kind; dealers are a
// distinct kind. Admin accounts are never matched by any audience.
func (a Audience) Role() (authctx.Role, bool) {
	switch a {
	case Buyers, Sellers:
		return authctx.RoleUser, true
	case Dealers:
		return authctx.RoleDealer, true
	default:
		return "", false
	}
}

// Broadcast channel keys.
const (
	// ChannelGlobal receives every all-audience event.
	ChannelGlobal = "global"
	// ChannelAdminFeed receives every fan-out regardless of audience, for
	// back-office observability.
	ChannelAdminFeed = "admin:notifications"
)

// RoleChannel returns the broadcast channel key for a role-scoped audience.
func RoleChannel(role authctx.Role) string {
	return "role:" + string(role)
}

// UserChannel returns the broadcast channel key for a single user.
func UserChannel(userID string) string {
	return "user:" + userID
}

// Selector identifies a fan-out target: a logical audience, or for
// Audience == User an explicit recipient by ID or email.
type Selector struct {
	Audience Audience
	UserID   string
	Email    string
}

// Member is one resolved recipient with its delivery eligibility flags.
type Member struct {
	ID       string
	Email    string // may be empty
	Verified bool   // email confirmed; unverified members are never emailed
	Active   bool   // deactivated accounts keep their inbox but are never emailed
	Room     string // broadcast room key, role:<role> or user:<id>
}

// Resolution is the outcome of resolving a Selector.
//
// Broadcast == true is the all-audience sentinel: a single shared record is
// persisted instead of one per user. Members still holds the (capped)
// recipient set so the email stage can send to every member individually.
// Truncated reports that the member cap was hit; callers must not assume
// completeness for very large audiences.
type Resolution struct {
	Audience  Audience
	Broadcast bool
	Members   []Member
	Truncated bool
	Channels  []string
}
