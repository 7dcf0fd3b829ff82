package shared

import (
	"context"
	"errors"
	"time"
)

// Scope carries the caller's selection state (company, actor, clock) and is passed explicitly to every
// component call instead of living in ambient globals.
type Scope struct {
	Company     string
	CompanyAbbr string
	Actor       string
	Now         func() time.Time
}

// ErrCompanyRequired is returned when a scope has no company selected.
var ErrCompanyRequired = errors.New("company must be selected")

// Validate checks the scope is usable.
func (s Scope) Validate() error {
	if s.Company == "" {
		return ErrCompanyRequired
	}
	return nil
}

// Today returns the scope's current date truncated to midnight UTC.
func (s Scope) Today() time.Time {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	t := now().UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type scopeKey struct{}

// ContextWithScope stores the scope in ctx.
func ContextWithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFromContext returns the scope stored by the scope middleware, or an empty scope.
func ScopeFromContext(ctx context.Context) Scope {
	scope, _ := ctx.Value(scopeKey{}).(Scope)
	return scope
}
