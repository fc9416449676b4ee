package authz

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	errors "github.com/frahmantamala/workpermit/internal"
	"github.com/frahmantamala/workpermit/internal/core/common/retry"
	"github.com/frahmantamala/workpermit/internal/directory"
	"github.com/frahmantamala/workpermit/internal/grant"
	"github.com/frahmantamala/workpermit/pkg/logger"
)

type GrantLister interface {
	ListGrants(ctx context.Context, tenantID int64, roleType *grant.RoleType) ([]grant.Grant, error)
}

type Service struct {
	grants    GrantLister
	directory directory.Directory
	retry     retry.Policy
	logger    *slog.Logger
}

func NewService(grants GrantLister, dir directory.Directory, policy retry.Policy, logger *slog.Logger) *Service {
	return &Service{
		grants:    grants,
		directory: dir,
		retry:     policy,
		logger:    logger,
	}
}

// Resolver snapshots the current grants and, when needed, the department
// tree for one tenant and role type.
func (s *Service) Resolver(ctx context.Context, tenantID int64, roleType grant.RoleType) (*Resolver, error) {
	if !roleType.Valid() {
		return nil, errors.ErrInvalidRoleType
	}

	grants, err := s.grants.ListGrants(ctx, tenantID, &roleType)
	if err != nil {
		return nil, fmt.Errorf("load approval grants: %w", err)
	}

	var tree *directory.Tree
	if NeedsTree(grants) {
		err = retry.Do(ctx, s.retry, s.logger, func(ctx context.Context) error {
			var err error
			tree, err = s.directory.DepartmentTree(ctx, tenantID)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("load department tree: %w", err)
		}
	}

	return NewResolver(tenantID, roleType, grants, tree), nil
}

// Decide evaluates identityID against a fresh snapshot. Unknown identities
// are denied rather than reported as errors.
func (s *Service) Decide(ctx context.Context, tenantID int64, roleType grant.RoleType, identityID int64) (Decision, error) {
	resolver, err := s.Resolver(ctx, tenantID, roleType)
	if err != nil {
		return Decision{}, err
	}

	var identity *directory.Identity
	var memberships []directory.Membership
	err = retry.Do(ctx, s.retry, s.logger, func(ctx context.Context) error {
		var err error
		identity, err = s.directory.GetIdentity(ctx, identityID)
		if err != nil {
			return err
		}
		memberships, err = s.directory.Memberships(ctx, tenantID, identityID)
		return err
	})
	if err != nil {
		if stderrors.Is(err, directory.ErrNotFound) {
			return Decision{Reason: ReasonNoGrant}, nil
		}
		return Decision{}, fmt.Errorf("load identity %d: %w", identityID, err)
	}

	decision := resolver.Decide(identity, memberships)
	logger.FromOr(ctx, s.logger).Debug("authorization decided",
		"tenant_id", tenantID,
		"role_type", roleType,
		"identity_id", identityID,
		"allowed", decision.Allowed,
		"reason", decision.Reason)
	return decision, nil
}

func (s *Service) IsAuthorized(ctx context.Context, tenantID int64, roleType grant.RoleType, identityID int64) (bool, error) {
	decision, err := s.Decide(ctx, tenantID, roleType, identityID)
	if err != nil {
		return false, err
	}
	return decision.Allowed, nil
}

// ListAuthorizedApprovers describes each grant of the role type in display
// form, followed by the tenant-manager rule that always applies.
func (s *Service) ListAuthorizedApprovers(ctx context.Context, tenantID int64, roleType grant.RoleType) ([]ApproverDescription, error) {
	if !roleType.Valid() {
		return nil, errors.ErrInvalidRoleType
	}

	grants, err := s.grants.ListGrants(ctx, tenantID, &roleType)
	if err != nil {
		return nil, err
	}

	names, err := s.loadNames(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	out := make([]ApproverDescription, 0, len(grants)+1)
	for _, g := range grants {
		out = append(out, names.describe(g))
	}
	out = append(out, ApproverDescription{
		RoleType:  string(roleType),
		ScopeKind: "platform_role",
		Label:     "Tenant managers",
	})
	return out, nil
}

// EligibleApprovers lists every identity in the tenant that the current
// rules would let approve the role type.
func (s *Service) EligibleApprovers(ctx context.Context, tenantID int64, roleType grant.RoleType) ([]directory.Identity, error) {
	resolver, err := s.Resolver(ctx, tenantID, roleType)
	if err != nil {
		return nil, err
	}

	var identities []directory.Identity
	var memberships []directory.Membership
	err = retry.Do(ctx, s.retry, s.logger, func(ctx context.Context) error {
		var err error
		identities, err = s.directory.ListIdentities(ctx, tenantID)
		if err != nil {
			return err
		}
		memberships, err = s.directory.TenantMemberships(ctx, tenantID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load tenant directory: %w", err)
	}

	byIdentity := make(map[int64][]directory.Membership)
	for _, m := range memberships {
		byIdentity[m.IdentityID] = append(byIdentity[m.IdentityID], m)
	}

	eligible := make([]directory.Identity, 0)
	for i := range identities {
		if resolver.Decide(&identities[i], byIdentity[identities[i].ID]).Allowed {
			eligible = append(eligible, identities[i])
		}
	}
	return eligible, nil
}

type nameIndex struct {
	identities map[int64]string
	roles      map[int64]string
	tree       *directory.Tree
}

func (s *Service) loadNames(ctx context.Context, tenantID int64) (*nameIndex, error) {
	idx := &nameIndex{
		identities: make(map[int64]string),
		roles:      make(map[int64]string),
	}

	err := retry.Do(ctx, s.retry, s.logger, func(ctx context.Context) error {
		identities, err := s.directory.ListIdentities(ctx, tenantID)
		if err != nil {
			return err
		}
		roles, err := s.directory.OrgRoles(ctx, tenantID)
		if err != nil {
			return err
		}
		tree, err := s.directory.DepartmentTree(ctx, tenantID)
		if err != nil {
			return err
		}
		for _, i := range identities {
			idx.identities[i.ID] = i.FullName
		}
		for _, r := range roles {
			idx.roles[r.ID] = r.Name
		}
		idx.tree = tree
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load directory names: %w", err)
	}
	return idx, nil
}

func (n *nameIndex) describe(g grant.Grant) ApproverDescription {
	d := ApproverDescription{
		GrantID:   g.ID,
		RoleType:  string(g.RoleType),
		ScopeKind: string(g.Scope.Kind()),
	}

	switch s := g.Scope.(type) {
	case grant.ScopeIdentity:
		d.TargetID = s.IdentityID
		name, ok := n.identities[s.IdentityID]
		d.Label, d.Dangling = labelOr(name, ok, "identity", s.IdentityID)
	case grant.ScopeRole:
		d.TargetID = s.OrgRoleID
		name, ok := n.roles[s.OrgRoleID]
		d.Label, d.Dangling = labelOr(name, ok, "org role", s.OrgRoleID)
	case grant.ScopeDepartment:
		d.TargetID = s.DepartmentID
		d.IncludeSubtree = s.IncludeSubtree
		path := n.tree.Path(s.DepartmentID)
		d.Label, d.Dangling = labelOr(strings.Join(path, " / "), len(path) > 0, "department", s.DepartmentID)
		if s.IncludeSubtree && !d.Dangling {
			d.Label += " (including sub-departments)"
		}
	}
	return d
}

func labelOr(name string, ok bool, kind string, id int64) (string, bool) {
	if ok {
		return name, false
	}
	return fmt.Sprintf("deleted %s #%d", kind, id), true
}
