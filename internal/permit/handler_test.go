package permit_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	errors "github.com/frahmantamala/workpermit/internal"
	permitDatamodel "github.com/frahmantamala/workpermit/internal/core/datamodel/permit"
	"github.com/frahmantamala/workpermit/internal/grant"
	"github.com/frahmantamala/workpermit/internal/permit"
	permitPostgres "github.com/frahmantamala/workpermit/internal/permit/postgres"
	"github.com/frahmantamala/workpermit/internal/transport"
)

var _ = Describe("Permit Handler Integration", func() {
	var (
		router     chi.Router
		authorizer *MockAuthorizer
	)

	BeforeEach(func() {
		slogger := testLogger()

		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(&permitDatamodel.WorkPermit{}, &permitDatamodel.WorkPermitCoworker{})).To(Succeed())

		authorizer = &MockAuthorizer{}
		authorizer.Allow(grant.RoleEngineer, 20)
		authorizer.Allow(grant.RoleISG, 30)

		service := permit.NewService(permitPostgres.NewPermitRepository(db), newDirectory(), authorizer, nil, nil, testPolicy(), slogger)
		handler := permit.NewHandler(&transport.BaseHandler{Logger: slogger}, service)

		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if raw := r.Header.Get("X-Identity"); raw != "" {
					id, _ := strconv.ParseInt(raw, 10, 64)
					r = r.WithContext(errors.ContextWithActor(r.Context(), errors.Actor{TenantID: tenant, IdentityID: id}))
				}
				next.ServeHTTP(w, r)
			})
		})
		router.Route("/permits", func(r chi.Router) {
			r.Get("/", handler.ListPermits)
			r.Post("/", handler.CreatePermit)
			r.Get("/{id}", handler.GetPermit)
			r.Delete("/{id}", handler.DeletePermit)
			r.Post("/{id}/approve/{role}", handler.ApprovePermit)
			r.Post("/{id}/reject", handler.RejectPermit)
		})
	})

	do := func(method, path string, identity int64, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		if identity > 0 {
			req.Header.Set("X-Identity", strconv.FormatInt(identity, 10))
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	create := func() permit.PermitResponse {
		w := do(http.MethodPost, "/permits/", creatorID, validDTO())
		Expect(w.Code).To(Equal(http.StatusCreated), w.Body.String())
		var resp permit.PermitResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		return resp
	}

	It("walks a permit from submission to approval", func() {
		created := create()
		Expect(created.Status).To(Equal("pending"))
		Expect(created.Coworkers).To(HaveLen(2))
		Expect(created.JobTypes.Items).To(Equal([]string{"Hot work"}))

		w := do(http.MethodPost, fmt.Sprintf("/permits/%d/approve/engineer", created.ID), 20, nil)
		Expect(w.Code).To(Equal(http.StatusOK), w.Body.String())

		w = do(http.MethodPost, fmt.Sprintf("/permits/%d/approve/isg", created.ID), 30, nil)
		Expect(w.Code).To(Equal(http.StatusOK), w.Body.String())
		var approved permit.PermitResponse
		Expect(json.NewDecoder(w.Body).Decode(&approved)).To(Succeed())
		Expect(approved.Status).To(Equal("approved"))
		Expect(*approved.EngineerApprovedBy).To(Equal(int64(20)))
		Expect(*approved.IsgApprovedBy).To(Equal(int64(30)))
		Expect(approved.Coworkers).To(HaveLen(2))

		w = do(http.MethodGet, fmt.Sprintf("/permits/%d", created.ID), creatorID, nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring(`"status":"approved"`))
	})

	It("answers 403 for ineligible approvers and 409 for a signed slot", func() {
		created := create()
		path := fmt.Sprintf("/permits/%d/approve/engineer", created.ID)

		w := do(http.MethodPost, path, 30, nil)
		Expect(w.Code).To(Equal(http.StatusForbidden))
		Expect(w.Body.String()).To(ContainSubstring("UNAUTHORIZED_APPROVER"))

		Expect(do(http.MethodPost, path, 20, nil).Code).To(Equal(http.StatusOK))

		w = do(http.MethodPost, path, 20, nil)
		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(w.Body.String()).To(ContainSubstring("ALREADY_APPROVED"))
	})

	It("answers 400 for an unknown role in the path", func() {
		created := create()
		w := do(http.MethodPost, fmt.Sprintf("/permits/%d/approve/auditor", created.ID), 20, nil)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(w.Body.String()).To(ContainSubstring("INVALID_ROLE_TYPE"))
	})

	It("answers 422 for a signature mismatch and an unknown coworker", func() {
		dto := validDTO()
		dto.SignatureIdentity = "E-999"
		w := do(http.MethodPost, "/permits/", creatorID, dto)
		Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))
		Expect(w.Body.String()).To(ContainSubstring("IDENTITY_MISMATCH"))

		dto = validDTO()
		dto.Coworkers[0].Identifier = "E-404"
		w = do(http.MethodPost, "/permits/", creatorID, dto)
		Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))
		Expect(w.Body.String()).To(ContainSubstring("coworkers[0].identifier"))
	})

	It("answers 400 with per-field details for empty checklists", func() {
		dto := validDTO()
		dto.JobTypes = []string{}
		w := do(http.MethodPost, "/permits/", creatorID, dto)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(w.Body.String()).To(ContainSubstring("EMPTY_CHECKLIST"))
		Expect(w.Body.String()).To(ContainSubstring("job_types"))
	})

	It("requires an authenticated caller", func() {
		Expect(do(http.MethodGet, "/permits/", 0, nil).Code).To(Equal(http.StatusUnauthorized))
	})

	It("lists, rejects and deletes", func() {
		first := create()
		second := create()

		w := do(http.MethodPost, fmt.Sprintf("/permits/%d/reject", first.ID), 4, map[string]string{"reason": "incomplete"})
		Expect(w.Code).To(Equal(http.StatusOK), w.Body.String())

		w = do(http.MethodGet, "/permits/?status=pending&limit=5", creatorID, nil)
		Expect(w.Code).To(Equal(http.StatusOK))
		var list permit.PermitsResponse
		Expect(json.NewDecoder(w.Body).Decode(&list)).To(Succeed())
		Expect(list.Permits).To(HaveLen(1))
		Expect(list.Permits[0].ID).To(Equal(second.ID))
		Expect(list.Limit).To(Equal(5))

		Expect(do(http.MethodDelete, fmt.Sprintf("/permits/%d", second.ID), 2, nil).Code).To(Equal(http.StatusForbidden))
		Expect(do(http.MethodDelete, fmt.Sprintf("/permits/%d", second.ID), creatorID, nil).Code).To(Equal(http.StatusNoContent))
		Expect(do(http.MethodGet, fmt.Sprintf("/permits/%d", second.ID), creatorID, nil).Code).To(Equal(http.StatusNotFound))
	})
})
