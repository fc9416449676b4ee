package grant_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	errors "github.com/frahmantamala/workpermit/internal"
	"github.com/frahmantamala/workpermit/internal/core/common/retry"
	grantDatamodel "github.com/frahmantamala/workpermit/internal/core/datamodel/grant"
	"github.com/frahmantamala/workpermit/internal/grant"
	grantPostgres "github.com/frahmantamala/workpermit/internal/grant/postgres"
	"github.com/frahmantamala/workpermit/internal/transport"
)

var _ = Describe("Grant Handler Integration", func() {
	var (
		handler *grant.Handler
		actor   errors.Actor
	)

	BeforeEach(func() {
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(&grantDatamodel.ApprovalGrant{})).To(Succeed())

		service := grant.NewService(grantPostgres.NewGrantRepository(db), retry.Policy{MaxTries: 1, InitialInterval: time.Millisecond}, slogger)
		handler = grant.NewHandler(&transport.BaseHandler{Logger: slogger}, service)
		actor = errors.Actor{TenantID: 1, IdentityID: 9}
	})

	withActor := func(req *http.Request) *http.Request {
		return req.WithContext(errors.ContextWithActor(req.Context(), actor))
	}

	withID := func(req *http.Request, id string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	post := func(body string) *httptest.ResponseRecorder {
		req := withActor(httptest.NewRequest(http.MethodPost, "/approval-grants", bytes.NewBufferString(body)))
		w := httptest.NewRecorder()
		handler.CreateGrant(w, req)
		return w
	}

	It("creates a grant and returns its id", func() {
		w := post(`{"role_type":"isg","department_id":4,"include_subtree":true}`)
		Expect(w.Code).To(Equal(http.StatusCreated))

		var resp grant.CreateGrantResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.ID).To(BeNumerically(">", 0))
	})

	It("answers 409 DUPLICATE_GRANT for an identical grant", func() {
		Expect(post(`{"role_type":"engineer","identity_id":7}`).Code).To(Equal(http.StatusCreated))

		w := post(`{"role_type":"engineer","identity_id":7}`)
		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(w.Body.String()).To(ContainSubstring("DUPLICATE_GRANT"))
	})

	It("answers 400 for an unknown role type or an ambiguous scope", func() {
		Expect(post(`{"role_type":"auditor","identity_id":7}`).Code).To(Equal(http.StatusBadRequest))
		Expect(post(`{"role_type":"isg","identity_id":7,"org_role_id":3}`).Code).To(Equal(http.StatusBadRequest))
		Expect(post(`{"role_type":"isg"}`).Code).To(Equal(http.StatusBadRequest))
	})

	It("lists grants filtered by role type", func() {
		post(`{"role_type":"engineer","identity_id":7}`)
		post(`{"role_type":"isg","org_role_id":3}`)

		req := withActor(httptest.NewRequest(http.MethodGet, "/approval-grants?role_type=isg", nil))
		w := httptest.NewRecorder()
		handler.ListGrants(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp grant.GrantsResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Grants).To(HaveLen(1))
		Expect(resp.Grants[0].ScopeKind).To(Equal("role"))
		Expect(*resp.Grants[0].OrgRoleID).To(Equal(int64(3)))
	})

	It("deletes idempotently", func() {
		post(`{"role_type":"engineer","identity_id":7}`)

		for i := 0; i < 2; i++ {
			req := withID(withActor(httptest.NewRequest(http.MethodDelete, "/approval-grants/1", nil)), "1")
			w := httptest.NewRecorder()
			handler.DeleteGrant(w, req)
			Expect(w.Code).To(Equal(http.StatusNoContent))
		}
	})

	It("requires an authenticated actor", func() {
		req := httptest.NewRequest(http.MethodGet, "/approval-grants", nil)
		w := httptest.NewRecorder()
		handler.ListGrants(w, req)
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
	})
})
