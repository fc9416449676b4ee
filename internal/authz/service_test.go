package authz_test

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	errors "github.com/frahmantamala/workpermit/internal"
	"github.com/frahmantamala/workpermit/internal/authz"
	"github.com/frahmantamala/workpermit/internal/core/common/retry"
	"github.com/frahmantamala/workpermit/internal/directory"
	"github.com/frahmantamala/workpermit/internal/directory/directorytest"
	"github.com/frahmantamala/workpermit/internal/grant"
)

// MockGrants implements authz.GrantLister over a mutable slice.
type MockGrants struct {
	grants     []grant.Grant
	shouldFail bool
	failError  error
	calls      int
}

func (m *MockGrants) ListGrants(ctx context.Context, tenantID int64, roleType *grant.RoleType) ([]grant.Grant, error) {
	m.calls++
	if m.shouldFail {
		return nil, m.failError
	}
	var out []grant.Grant
	for _, g := range m.grants {
		if g.TenantID == tenantID && (roleType == nil || g.RoleType == *roleType) {
			out = append(out, g)
		}
	}
	return out, nil
}

var _ = Describe("Authz Service", func() {
	var (
		dir     *directorytest.Directory
		grants  *MockGrants
		service *authz.Service
		ctx     context.Context
	)

	BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		dir = directorytest.New().
			AddDepartment(directory.Department{ID: 1, TenantID: tenant, Name: "Plant"}).
			AddDepartment(directory.Department{ID: 2, TenantID: tenant, Name: "Safety", ParentID: ptr(1)}).
			AddDepartment(directory.Department{ID: 3, TenantID: tenant, Name: "Night-Shift", ParentID: ptr(2)}).
			AddDepartment(directory.Department{ID: 4, TenantID: tenant, Name: "Maintenance", ParentID: ptr(1)}).
			AddOrgRole(directory.OrgRole{ID: 5, TenantID: tenant, Name: "Chief Engineer", LevelWeight: 90}).
			AddIdentity(directory.Identity{ID: 10, TenantID: tenant, FullName: "Night Worker", EmployeeNo: "E-10"}).
			AddIdentity(directory.Identity{ID: 11, TenantID: tenant, FullName: "Mechanic", EmployeeNo: "E-11"}).
			AddIdentity(directory.Identity{ID: 12, TenantID: tenant, FullName: "Boss", EmployeeNo: "E-12", PlatformRole: directory.PlatformRoleManager}).
			AddMembership(directory.Membership{IdentityID: 10, DepartmentID: 3}).
			AddMembership(directory.Membership{IdentityID: 11, DepartmentID: 4, OrgRoleID: ptr(5)})

		grants = &MockGrants{}
		service = authz.NewService(grants, dir, retry.Policy{MaxTries: 2, InitialInterval: time.Millisecond}, logger)
		ctx = context.Background()
	})

	Describe("IsAuthorized", func() {
		It("authorizes the Night-Shift member through the Safety subtree grant", func() {
			grants.grants = []grant.Grant{{ID: 1, TenantID: tenant, RoleType: grant.RoleISG, Scope: grant.ScopeDepartment{DepartmentID: 2, IncludeSubtree: true}}}

			ok, err := service.IsAuthorized(ctx, tenant, grant.RoleISG, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			ok, err = service.IsAuthorized(ctx, tenant, grant.RoleISG, 11)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("re-evaluates grants on every call", func() {
			ok, err := service.IsAuthorized(ctx, tenant, grant.RoleEngineer, 11)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())

			grants.grants = append(grants.grants, grant.Grant{ID: 2, TenantID: tenant, RoleType: grant.RoleEngineer, Scope: grant.ScopeRole{OrgRoleID: 5}})
			ok, err = service.IsAuthorized(ctx, tenant, grant.RoleEngineer, 11)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		})

		It("re-evaluates department membership on every call", func() {
			grants.grants = []grant.Grant{{ID: 1, TenantID: tenant, RoleType: grant.RoleISG, Scope: grant.ScopeDepartment{DepartmentID: 2, IncludeSubtree: true}}}
			Expect(service.IsAuthorized(ctx, tenant, grant.RoleISG, 10)).To(BeTrue())

			dir.DeleteDepartment(2)
			ok, err := service.IsAuthorized(ctx, tenant, grant.RoleISG, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("always authorizes the tenant manager", func() {
			for _, rt := range grant.RoleTypes {
				Expect(service.IsAuthorized(ctx, tenant, rt, 12)).To(BeTrue())
			}
		})

		It("denies unknown identities without an error", func() {
			ok, err := service.IsAuthorized(ctx, tenant, grant.RoleISG, 404)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("rejects an unknown role type", func() {
			_, err := service.IsAuthorized(ctx, tenant, grant.RoleType("auditor"), 10)
			Expect(stderrors.Is(err, errors.ErrInvalidRoleType)).To(BeTrue())
		})

		It("surfaces storage failures", func() {
			grants.shouldFail = true
			grants.failError = stderrors.New("db down")
			_, err := service.IsAuthorized(ctx, tenant, grant.RoleISG, 10)
			Expect(err).To(MatchError(ContainSubstring("db down")))
		})
	})

	Describe("ListAuthorizedApprovers", func() {
		BeforeEach(func() {
			grants.grants = []grant.Grant{
				{ID: 1, TenantID: tenant, RoleType: grant.RoleISG, Scope: grant.ScopeDepartment{DepartmentID: 2, IncludeSubtree: true}},
				{ID: 2, TenantID: tenant, RoleType: grant.RoleISG, Scope: grant.ScopeRole{OrgRoleID: 5}},
				{ID: 3, TenantID: tenant, RoleType: grant.RoleISG, Scope: grant.ScopeIdentity{IdentityID: 10}},
				{ID: 4, TenantID: tenant, RoleType: grant.RoleISG, Scope: grant.ScopeDepartment{DepartmentID: 77}},
				{ID: 5, TenantID: tenant, RoleType: grant.RoleEngineer, Scope: grant.ScopeIdentity{IdentityID: 11}},
			}
		})

		It("describes each grant with display names and flags dangling targets", func() {
			rules, err := service.ListAuthorizedApprovers(ctx, tenant, grant.RoleISG)
			Expect(err).NotTo(HaveOccurred())
			Expect(rules).To(HaveLen(5))

			Expect(rules[0].Label).To(Equal("Plant / Safety (including sub-departments)"))
			Expect(rules[1].Label).To(Equal("Chief Engineer"))
			Expect(rules[2].Label).To(Equal("Night Worker"))
			Expect(rules[3].Dangling).To(BeTrue())
			Expect(rules[3].Label).To(Equal("deleted department #77"))
			Expect(rules[4].ScopeKind).To(Equal("platform_role"))
		})
	})

	Describe("EligibleApprovers", func() {
		It("lists everyone the current rules admit", func() {
			grants.grants = []grant.Grant{{ID: 1, TenantID: tenant, RoleType: grant.RoleISG, Scope: grant.ScopeDepartment{DepartmentID: 2, IncludeSubtree: true}}}

			identities, err := service.EligibleApprovers(ctx, tenant, grant.RoleISG)
			Expect(err).NotTo(HaveOccurred())

			ids := make([]int64, 0, len(identities))
			for _, i := range identities {
				ids = append(ids, i.ID)
			}
			Expect(ids).To(ConsistOf(int64(10), int64(12)))
		})
	})
})
