package permit_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	errors "github.com/frahmantamala/workpermit/internal"
	"github.com/frahmantamala/workpermit/internal/authz"
	"github.com/frahmantamala/workpermit/internal/core/common/retry"
	"github.com/frahmantamala/workpermit/internal/core/events"
	"github.com/frahmantamala/workpermit/internal/directory"
	"github.com/frahmantamala/workpermit/internal/directory/directorytest"
	"github.com/frahmantamala/workpermit/internal/grant"
	"github.com/frahmantamala/workpermit/internal/permit"
)

// MockRepository keeps permits in memory. Transition holds the mutex for the
// whole read-modify-write, which is the guarantee the SQL version gives.
type MockRepository struct {
	mu      sync.Mutex
	permits map[int64]*permit.WorkPermit
	nextID  int64

	// conflicts makes the next N transitions report a lost race.
	conflicts int
}

func NewMockRepository() *MockRepository {
	return &MockRepository{permits: make(map[int64]*permit.WorkPermit)}
}

func clonePermit(p *permit.WorkPermit) *permit.WorkPermit {
	cp := *p
	cp.Coworkers = append([]permit.Coworker(nil), p.Coworkers...)
	return &cp
}

func (m *MockRepository) Create(ctx context.Context, p *permit.WorkPermit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	for i := range p.Coworkers {
		p.Coworkers[i].ID = int64(i + 1)
	}
	m.permits[p.ID] = clonePermit(p)
	return nil
}

func (m *MockRepository) GetByID(ctx context.Context, tenantID, id int64) (*permit.WorkPermit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.permits[id]
	if !ok || p.TenantID != tenantID {
		return nil, errors.ErrPermitNotFound
	}
	return clonePermit(p), nil
}

func (m *MockRepository) List(ctx context.Context, tenantID int64, filter permit.ListFilter, limit, offset int) ([]*permit.WorkPermit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*permit.WorkPermit
	for _, p := range m.permits {
		if p.TenantID != tenantID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.CreatorID > 0 && p.CreatorID != filter.CreatorID {
			continue
		}
		out = append(out, clonePermit(p))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID > out[b].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockRepository) Delete(ctx context.Context, tenantID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.permits[id]
	if !ok || p.TenantID != tenantID {
		return errors.ErrPermitNotFound
	}
	if p.Status == permit.StatusApproved {
		return errors.ErrInvalidPermitStatus
	}
	delete(m.permits, id)
	return nil
}

func (m *MockRepository) Transition(ctx context.Context, tenantID, id int64, fn func(p *permit.WorkPermit) error) (*permit.WorkPermit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflicts > 0 {
		m.conflicts--
		return nil, fmt.Errorf("permit %d: %w", id, retry.ErrConflict)
	}
	stored, ok := m.permits[id]
	if !ok || stored.TenantID != tenantID {
		return nil, errors.ErrPermitNotFound
	}
	next := clonePermit(stored)
	if err := fn(next); err != nil {
		return nil, err
	}
	m.permits[id] = next
	return clonePermit(next), nil
}

type MockAuthorizer struct {
	mu      sync.Mutex
	allowed map[grant.RoleType]map[int64]bool
	err     error
}

func (m *MockAuthorizer) Allow(role grant.RoleType, identityIDs ...int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.allowed == nil {
		m.allowed = make(map[grant.RoleType]map[int64]bool)
	}
	if m.allowed[role] == nil {
		m.allowed[role] = make(map[int64]bool)
	}
	for _, id := range identityIDs {
		m.allowed[role][id] = true
	}
}

func (m *MockAuthorizer) IsAuthorized(ctx context.Context, tenantID int64, roleType grant.RoleType, identityID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	return m.allowed[roleType][identityID], nil
}

// grantList serves a fixed set of grants to the real resolver.
type grantList []grant.Grant

func (g grantList) ListGrants(ctx context.Context, tenantID int64, roleType *grant.RoleType) ([]grant.Grant, error) {
	var out []grant.Grant
	for _, gr := range g {
		if gr.TenantID == tenantID && (roleType == nil || gr.RoleType == *roleType) {
			out = append(out, gr)
		}
	}
	return out, nil
}

type MockPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (m *MockPublisher) Publish(ctx context.Context, event events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.EventType())
	}
	return out
}

type MockRecorder struct {
	mu          sync.Mutex
	submissions []string
	approvals   []string
	rejections  int
}

func (m *MockRecorder) RecordSubmission(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions = append(m.submissions, outcome)
}

func (m *MockRecorder) RecordApproval(roleType, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.approvals = append(m.approvals, roleType+":"+outcome)
}

func (m *MockRecorder) RecordRejection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections++
}

var _ = Describe("Permit Service", func() {
	var (
		repo       *MockRepository
		dir        *directorytest.Directory
		authorizer *MockAuthorizer
		publisher  *MockPublisher
		recorder   *MockRecorder
		service    *permit.Service
		ctx        context.Context
		creator    errors.Actor
	)

	const (
		engineerID int64 = 20
		isgID      int64 = 30
		managerID  int64 = 4
	)

	BeforeEach(func() {
		repo = NewMockRepository()
		dir = newDirectory()
		authorizer = &MockAuthorizer{}
		authorizer.Allow(grant.RoleEngineer, engineerID)
		authorizer.Allow(grant.RoleISG, isgID)
		publisher = &MockPublisher{}
		recorder = &MockRecorder{}
		service = permit.NewService(repo, dir, authorizer, publisher, recorder, testPolicy(), testLogger())
		ctx = context.Background()
		creator = errors.Actor{TenantID: tenant, IdentityID: creatorID}
	})

	submit := func() *permit.WorkPermit {
		p, err := service.CreatePermit(ctx, creator, validDTO())
		Expect(err).NotTo(HaveOccurred())
		return p
	}

	actor := func(id int64) errors.Actor {
		return errors.Actor{TenantID: tenant, IdentityID: id}
	}

	Describe("CreatePermit", func() {
		It("stores a pending permit and announces it", func() {
			p := submit()
			Expect(p.ID).To(BeNumerically(">", 0))
			Expect(p.Status).To(Equal(permit.StatusPending))
			Expect(p.CreatedAt).NotTo(BeZero())
			Expect(publisher.Types()).To(Equal([]string{events.EventTypePermitSubmitted}))
			Expect(recorder.submissions).To(Equal([]string{"accepted"}))
		})

		It("stores nothing when validation fails", func() {
			dto := validDTO()
			dto.SignatureIdentity = "E-002"

			_, err := service.CreatePermit(ctx, creator, dto)
			Expect(err).To(MatchError(errors.ErrIdentityMismatch))
			Expect(repo.permits).To(BeEmpty())
			Expect(publisher.Types()).To(BeEmpty())
			Expect(recorder.submissions).To(Equal([]string{"identity_mismatch"}))
		})
	})

	Describe("ApprovePermit", func() {
		It("approves after both roles sign, in either order", func() {
			first := submit()
			p, err := service.ApprovePermit(ctx, actor(isgID), first.ID, grant.RoleISG)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Status).To(Equal(permit.StatusPending))

			p, err = service.ApprovePermit(ctx, actor(engineerID), first.ID, grant.RoleEngineer)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Status).To(Equal(permit.StatusApproved))
			Expect(*p.Engineer.By).To(Equal(engineerID))
			Expect(*p.ISG.By).To(Equal(isgID))

			Expect(publisher.Types()).To(Equal([]string{
				events.EventTypePermitSubmitted,
				events.EventTypePermitSlotApproved,
				events.EventTypePermitSlotApproved,
				events.EventTypePermitApproved,
			}))
		})

		It("reports Unauthorized before AlreadyApproved", func() {
			p := submit()
			_, err := service.ApprovePermit(ctx, actor(engineerID), p.ID, grant.RoleEngineer)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.ApprovePermit(ctx, actor(isgID), p.ID, grant.RoleEngineer)
			Expect(err).To(MatchError(errors.ErrUnauthorized))

			authorizer.Allow(grant.RoleEngineer, 21)
			_, err = service.ApprovePermit(ctx, actor(21), p.ID, grant.RoleEngineer)
			Expect(err).To(MatchError(errors.ErrAlreadyApproved))

			stored, err := service.GetPermit(ctx, tenant, p.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(*stored.Engineer.By).To(Equal(engineerID))
			Expect(recorder.approvals).To(Equal([]string{"engineer:approved", "engineer:unauthorized", "engineer:already_approved"}))
		})

		It("denies a creator who holds no grant", func() {
			p := submit()
			_, err := service.ApprovePermit(ctx, creator, p.ID, grant.RoleISG)
			Expect(err).To(MatchError(errors.ErrUnauthorized))
		})

		It("retries a lost compare-and-set", func() {
			p := submit()
			repo.conflicts = 2

			updated, err := service.ApprovePermit(ctx, actor(engineerID), p.ID, grant.RoleEngineer)
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Engineer.Filled()).To(BeTrue())
			Expect(repo.conflicts).To(BeZero())
		})

		It("does not find permits of another tenant", func() {
			p := submit()
			authorizer.Allow(grant.RoleEngineer, 50)
			_, err := service.ApprovePermit(ctx, errors.Actor{TenantID: 2, IdentityID: 50}, p.ID, grant.RoleEngineer)
			Expect(err).To(MatchError(errors.ErrPermitNotFound))
		})

		It("propagates authorizer failures", func() {
			p := submit()
			authorizer.err = stderrors.New("grants unavailable")
			_, err := service.ApprovePermit(ctx, actor(engineerID), p.ID, grant.RoleEngineer)
			Expect(err).To(MatchError("grants unavailable"))
		})

		It("lets concurrent approvals of different roles both land", func() {
			for i := 0; i < 20; i++ {
				p := submit()

				var wg sync.WaitGroup
				errs := make([]error, 2)
				wg.Add(2)
				go func() {
					defer wg.Done()
					_, errs[0] = service.ApprovePermit(ctx, actor(engineerID), p.ID, grant.RoleEngineer)
				}()
				go func() {
					defer wg.Done()
					_, errs[1] = service.ApprovePermit(ctx, actor(isgID), p.ID, grant.RoleISG)
				}()
				wg.Wait()

				Expect(errs[0]).NotTo(HaveOccurred())
				Expect(errs[1]).NotTo(HaveOccurred())
				stored, err := service.GetPermit(ctx, tenant, p.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(stored.Status).To(Equal(permit.StatusApproved))
			}
		})

		It("lets exactly one of many concurrent same-role approvals win", func() {
			approvers := []int64{20, 21, 22, 23, 24, 25}
			authorizer.Allow(grant.RoleEngineer, approvers...)
			p := submit()

			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				winners []int64
				losses  int
			)
			for _, id := range approvers {
				wg.Add(1)
				go func(id int64) {
					defer wg.Done()
					_, err := service.ApprovePermit(ctx, actor(id), p.ID, grant.RoleEngineer)
					mu.Lock()
					defer mu.Unlock()
					if err == nil {
						winners = append(winners, id)
					} else if stderrors.Is(err, errors.ErrAlreadyApproved) {
						losses++
					}
				}(id)
			}
			wg.Wait()

			Expect(winners).To(HaveLen(1))
			Expect(losses).To(Equal(len(approvers) - 1))
			stored, err := service.GetPermit(ctx, tenant, p.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(*stored.Engineer.By).To(Equal(winners[0]))
			Expect(stored.Status).To(Equal(permit.StatusPending))
		})
	})

	Describe("RejectPermit", func() {
		It("is reserved for tenant managers", func() {
			p := submit()
			_, err := service.RejectPermit(ctx, actor(2), p.ID, "no")
			Expect(err).To(MatchError(errors.ErrManagerRequired))

			rejected, err := service.RejectPermit(ctx, actor(managerID), p.ID, "missing gas test")
			Expect(err).NotTo(HaveOccurred())
			Expect(rejected.Status).To(Equal(permit.StatusRejected))
			Expect(recorder.rejections).To(Equal(1))

			_, err = service.ApprovePermit(ctx, actor(engineerID), p.ID, grant.RoleEngineer)
			Expect(err).To(MatchError(errors.ErrInvalidPermitStatus))
		})
	})

	Describe("DeletePermit", func() {
		It("lets the creator delete a pending permit", func() {
			p := submit()
			Expect(service.DeletePermit(ctx, actor(2), p.ID)).To(MatchError(errors.ErrNotPermitOwner))
			Expect(service.DeletePermit(ctx, creator, p.ID)).To(Succeed())
			_, err := service.GetPermit(ctx, tenant, p.ID)
			Expect(err).To(MatchError(errors.ErrPermitNotFound))
		})

		It("keeps approved permits", func() {
			p := submit()
			_, err := service.ApprovePermit(ctx, actor(engineerID), p.ID, grant.RoleEngineer)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.ApprovePermit(ctx, actor(isgID), p.ID, grant.RoleISG)
			Expect(err).NotTo(HaveOccurred())

			Expect(service.DeletePermit(ctx, actor(managerID), p.ID)).To(MatchError(errors.ErrInvalidPermitStatus))
		})
	})

	Describe("ListPermits", func() {
		It("filters by status and creator and pages", func() {
			a := submit()
			submit()
			submit()
			_, err := service.RejectPermit(ctx, actor(managerID), a.ID, "duplicate")
			Expect(err).NotTo(HaveOccurred())

			pending, err := service.ListPermits(ctx, tenant, permit.ListFilter{Status: permit.StatusPending}, 10, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(2))

			page, err := service.ListPermits(ctx, tenant, permit.ListFilter{CreatorID: creatorID}, 2, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(page).To(HaveLen(1))
			Expect(page[0].ID).To(Equal(a.ID))

			_, err = service.ListPermits(ctx, tenant, permit.ListFilter{Status: "draft"}, 10, 0)
			Expect(err).To(MatchError(errors.ErrValidationFailed))
		})
	})
})

var _ = Describe("Permit Service with grant resolution", func() {
	const (
		safetyID      int64 = 100
		nightShiftID  int64 = 101
		engineerID    int64 = 70
		nightWorkerID int64 = 71
	)

	var (
		dir     *directorytest.Directory
		service *permit.Service
		ctx     context.Context
		creator errors.Actor
	)

	BeforeEach(func() {
		dir = newDirectory().
			AddDepartment(directory.Department{ID: safetyID, TenantID: tenant, Name: "Safety"}).
			AddDepartment(directory.Department{ID: nightShiftID, TenantID: tenant, Name: "Night-Shift", ParentID: ptr(safetyID)}).
			AddIdentity(directory.Identity{ID: engineerID, TenantID: tenant, FullName: "Engineer", EmployeeNo: "E-070"}).
			AddIdentity(directory.Identity{ID: nightWorkerID, TenantID: tenant, FullName: "Night Worker", EmployeeNo: "E-071"}).
			AddMembership(directory.Membership{IdentityID: nightWorkerID, DepartmentID: nightShiftID})

		grants := grantList{
			{ID: 1, TenantID: tenant, RoleType: grant.RoleEngineer, Scope: grant.ScopeIdentity{IdentityID: engineerID}},
			{ID: 2, TenantID: tenant, RoleType: grant.RoleISG, Scope: grant.ScopeDepartment{DepartmentID: safetyID, IncludeSubtree: true}},
		}
		authorizer := authz.NewService(grants, dir, testPolicy(), testLogger())
		service = permit.NewService(NewMockRepository(), dir, authorizer, &MockPublisher{}, &MockRecorder{}, testPolicy(), testLogger())
		ctx = context.Background()
		creator = errors.Actor{TenantID: tenant, IdentityID: creatorID}
	})

	It("keeps approved permits approved after the granting department is removed", func() {
		// Given a permit approved through the Safety subtree grant
		approved, err := service.CreatePermit(ctx, creator, validDTO())
		Expect(err).NotTo(HaveOccurred())
		_, err = service.ApprovePermit(ctx, errors.Actor{TenantID: tenant, IdentityID: engineerID}, approved.ID, grant.RoleEngineer)
		Expect(err).NotTo(HaveOccurred())
		_, err = service.ApprovePermit(ctx, errors.Actor{TenantID: tenant, IdentityID: nightWorkerID}, approved.ID, grant.RoleISG)
		Expect(err).NotTo(HaveOccurred())

		pending, err := service.CreatePermit(ctx, creator, validDTO())
		Expect(err).NotTo(HaveOccurred())

		// When the department behind the grant disappears
		dir.DeleteDepartment(safetyID)

		// Then the signed permit is untouched
		stored, err := service.GetPermit(ctx, tenant, approved.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Status).To(Equal(permit.StatusApproved))
		Expect(*stored.ISG.By).To(Equal(nightWorkerID))
		Expect(*stored.Engineer.By).To(Equal(engineerID))

		// And the former member can no longer sign
		_, err = service.ApprovePermit(ctx, errors.Actor{TenantID: tenant, IdentityID: nightWorkerID}, approved.ID, grant.RoleISG)
		Expect(err).To(MatchError(errors.ErrUnauthorized))
		_, err = service.ApprovePermit(ctx, errors.Actor{TenantID: tenant, IdentityID: nightWorkerID}, pending.ID, grant.RoleISG)
		Expect(err).To(MatchError(errors.ErrUnauthorized))

		stored, err = service.GetPermit(ctx, tenant, pending.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.ISG.Filled()).To(BeFalse())
	})
})
