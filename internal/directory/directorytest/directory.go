// Package directorytest provides an in-memory directory.Directory for specs.
package directorytest

import (
	"context"
	"sort"
	"sync"

	"github.com/frahmantamala/workpermit/internal/directory"
)

type Directory struct {
	mu          sync.RWMutex
	identities  map[int64]directory.Identity
	departments map[int64]directory.Department
	roles       map[int64]directory.OrgRole
	memberships []directory.Membership

	// Err, when set, is returned by every lookup.
	Err error
}

func New() *Directory {
	return &Directory{
		identities:  make(map[int64]directory.Identity),
		departments: make(map[int64]directory.Department),
		roles:       make(map[int64]directory.OrgRole),
	}
}

func (d *Directory) AddIdentity(i directory.Identity) *Directory {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i.PlatformRole == "" {
		i.PlatformRole = directory.PlatformRoleMember
	}
	d.identities[i.ID] = i
	return d
}

func (d *Directory) AddDepartment(dep directory.Department) *Directory {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.departments[dep.ID] = dep
	return d
}

func (d *Directory) AddOrgRole(r directory.OrgRole) *Directory {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.roles[r.ID] = r
	return d
}

func (d *Directory) AddMembership(m directory.Membership) *Directory {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.memberships = append(d.memberships, m)
	return d
}

// DeleteDepartment removes the department, its subtree and their
// memberships, the way the database cascades do.
func (d *Directory) DeleteDepartment(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	doomed := map[int64]bool{id: true}
	for changed := true; changed; {
		changed = false
		for _, dep := range d.departments {
			if dep.ParentID != nil && doomed[*dep.ParentID] && !doomed[dep.ID] {
				doomed[dep.ID] = true
				changed = true
			}
		}
	}
	for depID := range doomed {
		delete(d.departments, depID)
	}

	kept := d.memberships[:0]
	for _, m := range d.memberships {
		if !doomed[m.DepartmentID] {
			kept = append(kept, m)
		}
	}
	d.memberships = kept
}

func (d *Directory) GetIdentity(ctx context.Context, id int64) (*directory.Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.Err != nil {
		return nil, d.Err
	}
	i, ok := d.identities[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return &i, nil
}

func (d *Directory) FindIdentity(ctx context.Context, tenantID int64, kind directory.IdentifierKind, identifier string) (*directory.Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.Err != nil {
		return nil, d.Err
	}
	for _, i := range d.identities {
		if i.TenantID != tenantID {
			continue
		}
		if kind == directory.IdentifierNationalID && i.NationalID == identifier {
			return &i, nil
		}
		if kind == directory.IdentifierEmployeeNo && i.EmployeeNo == identifier {
			return &i, nil
		}
	}
	return nil, directory.ErrNotFound
}

func (d *Directory) ListIdentities(ctx context.Context, tenantID int64) ([]directory.Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.Err != nil {
		return nil, d.Err
	}
	var out []directory.Identity
	for _, i := range d.identities {
		if i.TenantID == tenantID {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (d *Directory) Memberships(ctx context.Context, tenantID, identityID int64) ([]directory.Membership, error) {
	all, err := d.TenantMemberships(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var out []directory.Membership
	for _, m := range all {
		if m.IdentityID == identityID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (d *Directory) TenantMemberships(ctx context.Context, tenantID int64) ([]directory.Membership, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.Err != nil {
		return nil, d.Err
	}
	var out []directory.Membership
	for _, m := range d.memberships {
		if dep, ok := d.departments[m.DepartmentID]; ok && dep.TenantID != tenantID {
			continue
		}
		if i, ok := d.identities[m.IdentityID]; ok && i.TenantID != tenantID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (d *Directory) DepartmentTree(ctx context.Context, tenantID int64) (*directory.Tree, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.Err != nil {
		return nil, d.Err
	}
	var deps []directory.Department
	for _, dep := range d.departments {
		if dep.TenantID == tenantID {
			deps = append(deps, dep)
		}
	}
	return directory.NewTree(deps), nil
}

func (d *Directory) OrgRoles(ctx context.Context, tenantID int64) ([]directory.OrgRole, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.Err != nil {
		return nil, d.Err
	}
	var out []directory.OrgRole
	for _, r := range d.roles {
		if r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].LevelWeight > out[b].LevelWeight })
	return out, nil
}

var _ directory.Directory = (*Directory)(nil)
