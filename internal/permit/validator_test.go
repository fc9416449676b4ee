package permit_test

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	errors "github.com/frahmantamala/workpermit/internal"
	"github.com/frahmantamala/workpermit/internal/core/common/retry"
	"github.com/frahmantamala/workpermit/internal/directory"
	"github.com/frahmantamala/workpermit/internal/directory/directorytest"
	"github.com/frahmantamala/workpermit/internal/permit"
)

const (
	creatorID         int64 = 1
	creatorNationalID       = "12345678901"
	creatorEmployeeNo       = "E-001"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testPolicy() retry.Policy {
	return retry.Policy{MaxTries: 3, InitialInterval: time.Millisecond}
}

// newDirectory seeds a creator, two coworkers, a tenant manager and a person
// from another tenant who shares an employee number pattern.
func newDirectory() *directorytest.Directory {
	return directorytest.New().
		AddIdentity(directory.Identity{ID: creatorID, TenantID: tenant, FullName: "Creator", NationalID: creatorNationalID, EmployeeNo: creatorEmployeeNo}).
		AddIdentity(directory.Identity{ID: 2, TenantID: tenant, FullName: "Welder", EmployeeNo: "E-002"}).
		AddIdentity(directory.Identity{ID: 3, TenantID: tenant, FullName: "Rigger", NationalID: "98765432109"}).
		AddIdentity(directory.Identity{ID: 4, TenantID: tenant, FullName: "Manager", EmployeeNo: "E-004", PlatformRole: directory.PlatformRoleManager}).
		AddIdentity(directory.Identity{ID: 50, TenantID: 2, FullName: "Outsider", EmployeeNo: "E-050", NationalID: "11111111111"})
}

func validDTO() permit.CreatePermitDTO {
	return permit.CreatePermitDTO{
		WorkDate:          time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		EstimatedHours:    4,
		DepartmentText:    "Maintenance",
		CompanyText:       "Acme",
		WorkDescription:   "Replace flange on line 3",
		JobTypes:          []string{"Hot work"},
		Hazards:           []string{"Fire"},
		PPE:               []string{"Gloves", "Helmet"},
		Precautions:       []string{"Fire watch"},
		SignatureIdentity: creatorNationalID,
		Coworkers: []permit.CoworkerDTO{
			{FullName: "Welder", Location: "Line 3", Identifier: "E-002"},
			{FullName: "Rigger", Location: "Line 3", Identifier: "98765432109"},
		},
	}
}

func fieldCodes(err error) map[string]string {
	appErr, ok := errors.IsAppError(err)
	Expect(ok).To(BeTrue())
	details, ok := appErr.Details.(errors.ValidationErrors)
	Expect(ok).To(BeTrue())
	out := make(map[string]string)
	for _, e := range details.Errors {
		out[e.Field] = e.Code
	}
	return out
}

var _ = Describe("SubmissionValidator", func() {
	var (
		dir       *directorytest.Directory
		validator *permit.SubmissionValidator
		ctx       context.Context
	)

	BeforeEach(func() {
		dir = newDirectory()
		validator = permit.NewSubmissionValidator(dir, testPolicy(), testLogger())
		ctx = context.Background()
	})

	It("builds a pending permit with resolved coworkers", func() {
		p, err := validator.Validate(ctx, tenant, creatorID, validDTO())
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Status).To(Equal(permit.StatusPending))
		Expect(p.Engineer.Filled()).To(BeFalse())
		Expect(p.ISG.Filled()).To(BeFalse())
		Expect(p.Coworkers).To(HaveLen(2))
		Expect(p.Coworkers[0].IdentityID).To(Equal(int64(2)))
		Expect(p.Coworkers[0].IdentifierKind).To(Equal(directory.IdentifierEmployeeNo))
		Expect(p.Coworkers[1].IdentityID).To(Equal(int64(3)))
		Expect(p.Coworkers[1].IdentifierKind).To(Equal(directory.IdentifierNationalID))
	})

	It("accepts the employee number as a signature", func() {
		dto := validDTO()
		dto.SignatureIdentity = creatorEmployeeNo
		_, err := validator.Validate(ctx, tenant, creatorID, dto)
		Expect(err).NotTo(HaveOccurred())
	})

	It("reports every empty checklist", func() {
		dto := validDTO()
		dto.Hazards = nil
		dto.PPE = []string{"  "}

		_, err := validator.Validate(ctx, tenant, creatorID, dto)
		Expect(err).To(MatchError(errors.ErrValidationFailed))
		codes := fieldCodes(err)
		Expect(codes).To(HaveKeyWithValue("hazards", string(errors.ErrCodeEmptyChecklist)))
		Expect(codes).To(HaveKeyWithValue("ppe", string(errors.ErrCodeEmptyChecklist)))
		Expect(codes).NotTo(HaveKey("job_types"))
	})

	It("requires the explanation when Other is selected", func() {
		dto := validDTO()
		dto.Precautions = []string{"Fire watch", "Other"}
		dto.PrecautionsOther = "   "

		_, err := validator.Validate(ctx, tenant, creatorID, dto)
		Expect(err).To(MatchError(errors.ErrValidationFailed))
		Expect(fieldCodes(err)).To(HaveKeyWithValue("precautions_other", string(errors.ErrCodeMissingOtherText)))

		dto.PrecautionsOther = "gas test every hour"
		p, err := validator.Validate(ctx, tenant, creatorID, dto)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Precautions.Other).To(Equal("gas test every hour"))
	})

	It("checks request shape before anything else", func() {
		dto := validDTO()
		dto.EstimatedHours = 0
		dto.SignatureIdentity = "nobody"

		_, err := validator.Validate(ctx, tenant, creatorID, dto)
		Expect(err).To(MatchError(errors.ErrValidationFailed))
		Expect(fieldCodes(err)).To(HaveKey("estimated_hours"))
	})

	DescribeTable("rejects signatures that are not a verbatim stored identifier",
		func(signature string) {
			dto := validDTO()
			dto.SignatureIdentity = signature
			_, err := validator.Validate(ctx, tenant, creatorID, dto)
			Expect(err).To(MatchError(errors.ErrIdentityMismatch))
		},
		Entry("someone else's id", "98765432109"),
		Entry("padded", " "+creatorNationalID),
		Entry("lower-cased employee number", "e-001"),
		Entry("whitespace only", "   "),
	)

	It("requires a signature before looking at the creator", func() {
		dto := validDTO()
		dto.SignatureIdentity = ""

		_, err := validator.Validate(ctx, tenant, creatorID, dto)
		Expect(err).To(MatchError(errors.ErrValidationFailed))
		Expect(err).NotTo(MatchError(errors.ErrIdentityMismatch))
		Expect(fieldCodes(err)).To(HaveKey("signature_identity"))
	})

	It("names the coworker row that does not resolve", func() {
		dto := validDTO()
		dto.Coworkers = append(dto.Coworkers, permit.CoworkerDTO{FullName: "Ghost", Identifier: "E-999"})

		_, err := validator.Validate(ctx, tenant, creatorID, dto)
		Expect(err).To(MatchError(errors.ErrUnknownCoworker))
		Expect(fieldCodes(err)).To(HaveKeyWithValue("coworkers[2].identifier", string(errors.ErrCodeUnknownCoworker)))
	})

	DescribeTable("refuses the creator as their own coworker",
		func(identifier string) {
			dto := validDTO()
			dto.Coworkers = append(dto.Coworkers, permit.CoworkerDTO{FullName: "Creator", Identifier: identifier})

			_, err := validator.Validate(ctx, tenant, creatorID, dto)
			Expect(err).To(MatchError(errors.ErrValidationFailed))
			Expect(fieldCodes(err)).To(HaveKeyWithValue("coworkers[2].identifier", string(errors.ErrCodeCoworkerIsCreator)))
		},
		Entry("by national id", creatorNationalID),
		Entry("by employee number", creatorEmployeeNo),
	)

	It("does not resolve coworkers from another tenant", func() {
		dto := validDTO()
		dto.Coworkers = []permit.CoworkerDTO{{FullName: "Outsider", Identifier: "11111111111"}}

		_, err := validator.Validate(ctx, tenant, creatorID, dto)
		Expect(err).To(MatchError(errors.ErrUnknownCoworker))
	})

	It("classifies by shape, so an 11-digit employee number is looked up as a national id", func() {
		dir.AddIdentity(directory.Identity{ID: 60, TenantID: tenant, FullName: "Odd", EmployeeNo: "55555555555"})
		dto := validDTO()
		dto.Coworkers = []permit.CoworkerDTO{{FullName: "Odd", Identifier: "55555555555"}}

		_, err := validator.Validate(ctx, tenant, creatorID, dto)
		Expect(err).To(MatchError(errors.ErrUnknownCoworker))
	})

	It("fails for creators from another tenant", func() {
		dto := validDTO()
		dto.SignatureIdentity = "E-050"
		_, err := validator.Validate(ctx, tenant, 50, dto)
		Expect(err).To(MatchError(errors.ErrTenantMismatch))
	})

	It("passes directory failures through", func() {
		dir.Err = stderrors.New("connection reset")
		_, err := validator.Validate(ctx, tenant, creatorID, validDTO())
		Expect(err).To(HaveOccurred())
		_, isApp := errors.IsAppError(err)
		Expect(isApp).To(BeFalse())
	})
})
