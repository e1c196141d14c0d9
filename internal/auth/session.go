package auth

import (
	"context"
	"errors"
	"time"

	"github.com/erazemk/stocktaker/internal/model"
)

// ErrNotApproved is returned when an unapproved user reaches a gated operation.
var ErrNotApproved = errors.New("account is awaiting approval")

// Session identifies the user behind a request. It is built once per request
// from a validated token and the current user record, then passed explicitly
// to the code that acts on the user's behalf.
type Session struct {
	UserID    string
	Email     string
	Name      string
	Role      string
	Approved  bool
	TokenID   string
	ExpiresAt time.Time
}

// NewSession combines token claims with the stored user.
func NewSession(claims *Claims, user *model.User) Session {
	return Session{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		Approved:  user.Approved,
		TokenID:   claims.ID,
		ExpiresAt: claims.Expiry(),
	}
}

// HasRole reports whether the session's role meets minimum.
func (s Session) HasRole(minimum string) bool {
	return model.RoleAtLeast(s.Role, minimum)
}

// RequireApproved returns ErrNotApproved for unapproved sessions.
func (s Session) RequireApproved() error {
	if !s.Approved {
		return ErrNotApproved
	}
	return nil
}

type sessionKey struct{}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored by WithSession.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}
