package audience

import (
	"context"
	"errors"
	"fmt"

	"github.com/razaaliwebdev/sello/pkg/authctx"
)

// DefaultMemberCap bounds role-audience fan-out cost. Hitting the cap is a
// truncation, not an error.
const DefaultMemberCap = 1000

// UserRecord is the slice of a user document the resolver needs.
type UserRecord struct {
	ID       string
	Email    string
	Role     authctx.Role
	Verified bool
	Active   bool
}

// UserStore looks up user records for audience resolution.
type UserStore interface {
	// FindByRoles returns up to limit users whose account kind is any of
	// the given roles.
	FindByRoles(ctx context.Context, roles []authctx.Role, limit int) ([]UserRecord, error)

	// FindByID returns the user with the given identifier, or
	// ErrUserNotFound.
	FindByID(ctx context.Context, id string) (*UserRecord, error)

	// FindByEmail returns the user with the given email, or ErrUserNotFound.
	FindByEmail(ctx context.Context, email string) (*UserRecord, error)
}

// ErrUserNotFound is returned by UserStore lookups that match no user.
var ErrUserNotFound = errors.New("audience: user not found")

// Resolver maps selectors onto concrete membership.
type Resolver struct {
	store UserStore
	cap   int
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithMemberCap overrides the role-audience member cap.
func WithMemberCap(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.cap = n
		}
	}
}

// NewResolver creates a resolver over the given user store.
func NewResolver(store UserStore, opts ...ResolverOption) *Resolver {
	r := &Resolver{store: store, cap: DefaultMemberCap}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve produces the delivery membership for a selector.
//
// The all audience resolves to the broadcast sentinel: a single shared
// record instead of per-user persistence. Its Members are still resolved
// (capped) because the email stage sends to every member individually even
// when only one record is stored. Role audiences resolve to a deduplicated
// member set capped at the configured limit. The user audience resolves the
// explicit recipient by ID or email; an email matching no user is a client
// error.
func (r *Resolver) Resolve(ctx context.Context, sel Selector) (Resolution, error) {
	switch sel.Audience {
	case All:
		members, truncated, err := r.members(ctx, []authctx.Role{authctx.RoleUser, authctx.RoleDealer}, ChannelGlobal)
		if err != nil {
			return Resolution{}, fmt.Errorf("audience: resolve all: %w", err)
		}
		return Resolution{
			Audience:  All,
			Broadcast: true,
			Members:   members,
			Truncated: truncated,
			Channels:  []string{ChannelGlobal},
		}, nil

	case Buyers, Sellers, Dealers:
		role, _ := sel.Audience.Role()
		room := RoleChannel(role)
		members, truncated, err := r.members(ctx, []authctx.Role{role}, room)
		if err != nil {
			return Resolution{}, fmt.Errorf("audience: resolve %s: %w", sel.Audience, err)
		}
		return Resolution{
			Audience:  sel.Audience,
			Members:   members,
			Truncated: truncated,
			Channels:  []string{room},
		}, nil

	case User:
		return r.resolveExplicit(ctx, sel)

	default:
		return Resolution{}, fmt.Errorf("%w: %q", ErrUnknownAudience, sel.Audience)
	}
}

func (r *Resolver) members(ctx context.Context, roles []authctx.Role, room string) ([]Member, bool, error) {
	// Fetch one past the cap so truncation is detectable.
	records, err := r.store.FindByRoles(ctx, roles, r.cap+1)
	if err != nil {
		return nil, false, err
	}

	truncated := len(records) > r.cap
	if truncated {
		records = records[:r.cap]
	}

	seen := make(map[string]struct{}, len(records))
	members := make([]Member, 0, len(records))
	for _, rec := range records {
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		members = append(members, memberOf(rec, room))
	}
	return members, truncated, nil
}

func (r *Resolver) resolveExplicit(ctx context.Context, sel Selector) (Resolution, error) {
	var (
		rec *UserRecord
		err error
	)
	switch {
	case sel.UserID != "":
		rec, err = r.store.FindByID(ctx, sel.UserID)
	case sel.Email != "":
		rec, err = r.store.FindByEmail(ctx, sel.Email)
	default:
		return Resolution{}, ErrMissingRecipient
	}
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Resolution{}, ErrRecipientNotFound
		}
		return Resolution{}, fmt.Errorf("audience: resolve recipient: %w", err)
	}

	room := UserChannel(rec.ID)
	return Resolution{
		Audience: User,
		Members:  []Member{memberOf(*rec, room)},
		Channels: []string{room},
	}, nil
}

func memberOf(rec UserRecord, room string) Member {
	return Member{
		ID:       rec.ID,
		Email:    rec.Email,
		Verified: rec.Verified,
		Active:   rec.Active,
		Room:     room,
	}
}
