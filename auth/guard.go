package auth

import (
	"errors"
	"fmt"

	"guard-bot/model"
)

var (
	// ErrNotAuthenticated reports an operation reached without a resolved
	// current user.
	ErrNotAuthenticated = errors.New("no authenticated user for this request")
	// ErrNoGuild reports an operation reached outside a guild.
	ErrNoGuild = errors.New("no guild in scope for this request")
)

// MissingClaimsError reports exactly the claims the current user lacks.
type MissingClaimsError struct {
	Missing []model.Claim
}

func (e *MissingClaimsError) Error() string {
	return fmt.Sprintf("missing required claims: %v", e.Missing)
}

// Context is the request-scoped authentication state: resolved once per
// request and held for that request's lifetime only.
type Context struct {
	UserID        string
	GuildID       string
	Claims        model.ClaimSet
	Administrator bool
}

// RequireAuthenticatedUser asserts a current user was resolved.
func (c *Context) RequireAuthenticatedUser() error {
	if c == nil || c.UserID == "" {
		return ErrNotAuthenticated
	}
	return nil
}

// RequireAuthenticatedGuild asserts the request is scoped to a guild.
func (c *Context) RequireAuthenticatedGuild() error {
	if c == nil || c.GuildID == "" {
		return ErrNoGuild
	}
	return nil
}

// RequireClaims asserts the current claim set supersets the given claims,
// reporting exactly the missing subset otherwise.
func (c *Context) RequireClaims(claims ...model.Claim) error {
	if err := c.RequireAuthenticatedUser(); err != nil {
		return err
	}
	if missing := c.Claims.Missing(claims...); len(missing) > 0 {
		return &MissingClaimsError{Missing: missing}
	}
	return nil
}

// HasClaims reports whether the current claim set supersets the given
// claims without constructing an error.
func (c *Context) HasClaims(claims ...model.Claim) bool {
	return c != nil && len(c.Claims.Missing(claims...)) == 0
}

// Authorizer builds request contexts from the resolver.
type Authorizer struct {
	resolver *Resolver
}

// NewAuthorizer builds an authorizer over the given resolver.
func NewAuthorizer(resolver *Resolver) *Authorizer {
	return &Authorizer{resolver: resolver}
}

// Authenticate resolves the claim set for the requesting user and returns
// the request context.
func (a *Authorizer) Authenticate(guildID, userID string, roleIDs []string, administrator bool) (*Context, error) {
	claims, err := a.resolver.Resolve(guildID, roleIDs, userID, administrator)
	if err != nil {
		return nil, err
	}
	return &Context{
		UserID:        userID,
		GuildID:       guildID,
		Claims:        claims,
		Administrator: administrator,
	}, nil
}

// ClaimsFor resolves the claim set for an arbitrary subject. When the
// subject is the already-authenticated requester the request's cached set
// is returned without recomputation.
func (a *Authorizer) ClaimsFor(ctx *Context, guildID, userID string, roleIDs []string, administrator bool, filter ...model.Claim) (model.ClaimSet, error) {
	if ctx != nil && ctx.UserID == userID && ctx.GuildID == guildID {
		return ctx.Claims, nil
	}
	return a.resolver.Resolve(guildID, roleIDs, userID, administrator, filter...)
}
