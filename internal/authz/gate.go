// Package authz decides who may read whose audit events. It sequences
// directory lookups and applies the decision rules; it performs no lookups
// of its own beyond the Directory interface.
package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/auditline-platform/auditline/internal/directory"
)

var (
	// ErrNotAuthorized marks a cross-user or cross-domain read attempt
	// without the required privilege.
	ErrNotAuthorized = errors.New("user is not authorized to access this resource")

	// ErrNotDomainAdmin marks a domain-scoped request by a non-admin.
	ErrNotDomainAdmin = errors.New("user is not an admin of the domain")

	// ErrAuditNotEnabled marks a caller without the audit log feature.
	ErrAuditNotEnabled = errors.New("audit log is not enabled for user")
)

type Gate struct {
	dir directory.Directory
}

func NewGate(dir directory.Directory) *Gate {
	return &Gate{dir: dir}
}

// RequireDomainAdmin authorizes a domain-scoped listing: the caller must
// have the audit feature and administer the target domain.
func (g *Gate) RequireDomainAdmin(ctx context.Context, callerID, domainID string) error {
	if _, err := g.callerInfo(ctx, callerID); err != nil {
		return err
	}

	isAdmin, err := g.dir.IsDomainAdmin(ctx, callerID, domainID)
	if err != nil {
		return err
	}
	if !isAdmin {
		slog.Warn("domain admin check rejected", "caller", callerID, "domain", domainID)
		return fmt.Errorf("user %s: %w", callerID, ErrNotDomainAdmin)
	}
	return nil
}

// AuthorizeUserAccess authorizes a user-scoped listing and returns the
// target's directory record for query scoping. Self-access always passes;
// reading another user's events requires shared domain membership plus
// admin privilege in that domain.
func (g *Gate) AuthorizeUserAccess(ctx context.Context, callerID, targetUserID string) (*directory.UserInfo, error) {
	caller, err := g.callerInfo(ctx, callerID)
	if err != nil {
		return nil, err
	}

	target, err := g.dir.UserInfo(ctx, targetUserID)
	if err != nil {
		return nil, err
	}

	if callerID == targetUserID {
		return target, nil
	}

	if caller.DomainID != target.DomainID {
		slog.Warn("cross-domain access rejected", "caller", callerID, "target", targetUserID)
		return nil, fmt.Errorf("user %s: %w", callerID, ErrNotAuthorized)
	}

	isAdmin, err := g.dir.IsDomainAdmin(ctx, callerID, caller.DomainID)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		slog.Warn("cross-user access rejected", "caller", callerID, "target", targetUserID)
		return nil, fmt.Errorf("user %s: %w", callerID, ErrNotAuthorized)
	}

	return target, nil
}

func (g *Gate) callerInfo(ctx context.Context, callerID string) (*directory.UserInfo, error) {
	caller, err := g.dir.UserInfo(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if !caller.AuditEnabled {
		return nil, fmt.Errorf("user %s: %w", callerID, ErrAuditNotEnabled)
	}
	return caller, nil
}
