// Package directory talks to the external identity/domain directory service.
// The rest of the codebase only sees the narrow Directory interface so the
// authorization logic can be tested against fakes.
package directory

import (
	"context"
	"errors"
)

var (
	ErrUserNotFound   = errors.New("user not found in directory")
	ErrDomainNotFound = errors.New("domain not found in directory")
)

// UserInfo is the directory's view of a platform user.
type UserInfo struct {
	UserID       string `json:"id"`
	Login        string `json:"login"`
	DomainID     string `json:"domain"`
	AuditEnabled bool   `json:"auditEnabled"`
}

// Directory resolves user identity and domain membership.
type Directory interface {
	// UserInfo returns the user's login, home domain and audit feature flag.
	UserInfo(ctx context.Context, userID string) (*UserInfo, error)

	// IsDomainAdmin reports whether the user administers the given domain.
	IsDomainAdmin(ctx context.Context, userID, domainID string) (bool, error)
}
