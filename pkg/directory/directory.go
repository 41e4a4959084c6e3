// Package directory provides the user directory consumed for mention
// resolution and notification addressing, backed by Salesforce CRM users.
package directory

import (
	"context"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// User is one directory identity.
type User struct {
	ID        string `json:"Id"`
	FirstName string `json:"FirstName"`
	LastName  string `json:"LastName"`
	Email     string `json:"Email"`
}

// Lookup resolves directory identities.
type Lookup interface {
	ListUsers(ctx context.Context) ([]User, error)
}

// Option configures the Salesforce-backed lookup.
type Option func(*sfLookup)

// WithRateLimit sets a per-second rate limit for directory API calls.
func WithRateLimit(rps float64) Option {
	return func(l *sfLookup) {
		if rps > 0 {
			l.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// sfLookup wraps the go-salesforce/v3 Salesforce struct.
//
// The underlying library does not accept context.Context, so the ctx is only
// used for rate limiter waiting; callers can still cancel that wait.
type sfLookup struct {
	sf      *salesforce.Salesforce
	limiter *rate.Limiter
}

// NewSalesforce creates a Lookup over an initialized go-salesforce instance.
func NewSalesforce(sf *salesforce.Salesforce, opts ...Option) Lookup {
	l := &sfLookup{sf: sf}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *sfLookup) wait(ctx context.Context) error {
	if l.limiter == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// ListUsers returns all active users with a first and last name.
func (l *sfLookup) ListUsers(ctx context.Context) ([]User, error) {
	if err := l.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "directory: rate limit")
	}

	var result struct {
		Records []User
	}
	soql := `SELECT Id, FirstName, LastName, Email FROM User WHERE IsActive = true AND FirstName != null AND LastName != null`
	if err := l.sf.Query(soql, &result); err != nil {
		return nil, eris.Wrap(err, "directory: query users")
	}
	return result.Records, nil
}
