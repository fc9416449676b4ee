package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	directoryDatamodel "github.com/frahmantamala/workpermit/internal/core/datamodel/directory"
	"github.com/frahmantamala/workpermit/internal/grant"
)

const seedTenantName = "Demo Plant"

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed a demo tenant with profiles, a department tree, org roles and approval grants.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		stores, err := openStores(cmd.Context(), cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer stores.Close()
		db := stores.Gorm

		if clearData {
			if err := db.Exec("DELETE FROM tenants WHERE name = ?", seedTenantName).Error; err != nil {
				log.Fatalf("failed to clear demo tenant: %v", err)
			}
			fmt.Println("Cleared demo tenant:", seedTenantName)
		}

		var exists int
		if err := db.Raw("SELECT 1 FROM tenants WHERE name = ?", seedTenantName).Row().Scan(&exists); err == nil {
			fmt.Println("demo tenant already exists; run with --clear to reseed")
			return
		}

		if err := db.Transaction(seedDemoTenant); err != nil {
			log.Fatalf("failed to seed demo tenant: %v", err)
		}
	},
}

func seedDemoTenant(tx *gorm.DB) error {
	var tenantID int64
	if err := tx.Raw("INSERT INTO tenants (name, created_at) VALUES (?, now()) RETURNING id", seedTenantName).Row().Scan(&tenantID); err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	fmt.Println("Seeded tenant:", seedTenantName, "id", tenantID)

	operations := directoryDatamodel.Department{TenantID: tenantID, Name: "Operations"}
	if err := tx.Create(&operations).Error; err != nil {
		return fmt.Errorf("insert department: %w", err)
	}
	maintenance := directoryDatamodel.Department{TenantID: tenantID, Name: "Maintenance", ParentID: &operations.ID}
	if err := tx.Create(&maintenance).Error; err != nil {
		return fmt.Errorf("insert department: %w", err)
	}
	electrical := directoryDatamodel.Department{TenantID: tenantID, Name: "Electrical", ParentID: &maintenance.ID}
	if err := tx.Create(&electrical).Error; err != nil {
		return fmt.Errorf("insert department: %w", err)
	}
	safety := directoryDatamodel.Department{TenantID: tenantID, Name: "Safety"}
	if err := tx.Create(&safety).Error; err != nil {
		return fmt.Errorf("insert department: %w", err)
	}

	supervisor := directoryDatamodel.OrgRole{TenantID: tenantID, Name: "Shift Supervisor", LevelWeight: 20}
	officer := directoryDatamodel.OrgRole{TenantID: tenantID, Name: "ISG Officer", LevelWeight: 30}
	technician := directoryDatamodel.OrgRole{TenantID: tenantID, Name: "Technician", LevelWeight: 10}
	for _, role := range []*directoryDatamodel.OrgRole{&supervisor, &officer, &technician} {
		if err := tx.Create(role).Error; err != nil {
			return fmt.Errorf("insert org role %s: %w", role.Name, err)
		}
	}

	people := []struct {
		profile    directoryDatamodel.Profile
		department int64
		role       *int64
	}{
		{directoryDatamodel.Profile{FullName: "Plant Manager", EmployeeNo: strPtr("M-001"), PlatformRole: "tenant_manager"}, operations.ID, nil},
		{directoryDatamodel.Profile{FullName: "Maintenance Supervisor", EmployeeNo: strPtr("E-100")}, maintenance.ID, &supervisor.ID},
		{directoryDatamodel.Profile{FullName: "ISG Officer", NationalID: strPtr("10000000146")}, safety.ID, &officer.ID},
		{directoryDatamodel.Profile{FullName: "Electrician", NationalID: strPtr("12345678901"), EmployeeNo: strPtr("E-200")}, electrical.ID, &technician.ID},
		{directoryDatamodel.Profile{FullName: "Apprentice", EmployeeNo: strPtr("E-201")}, electrical.ID, &technician.ID},
	}
	for _, p := range people {
		p.profile.TenantID = tenantID
		if p.profile.PlatformRole == "" {
			p.profile.PlatformRole = "member"
		}
		if err := tx.Create(&p.profile).Error; err != nil {
			return fmt.Errorf("insert profile %s: %w", p.profile.FullName, err)
		}
		member := directoryDatamodel.DepartmentMember{
			TenantID:     tenantID,
			ProfileID:    p.profile.ID,
			DepartmentID: p.department,
			OrgRoleID:    p.role,
		}
		if err := tx.Create(&member).Error; err != nil {
			return fmt.Errorf("insert membership for %s: %w", p.profile.FullName, err)
		}
		fmt.Printf("Seeded profile: %s (id %d)\n", p.profile.FullName, p.profile.ID)
	}

	grants := []struct {
		roleType grant.RoleType
		scope    grant.Scope
	}{
		{grant.RoleEngineer, grant.ScopeDepartment{DepartmentID: maintenance.ID, IncludeSubtree: false}},
		{grant.RoleEngineer, grant.ScopeRole{OrgRoleID: supervisor.ID}},
		{grant.RoleISG, grant.ScopeRole{OrgRoleID: officer.ID}},
		{grant.RoleISG, grant.ScopeDepartment{DepartmentID: safety.ID, IncludeSubtree: true}},
	}
	for _, g := range grants {
		row := grant.ToDataModel(&grant.Grant{TenantID: tenantID, RoleType: g.roleType, Scope: g.scope})
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("insert grant %s %s: %w", g.roleType, g.scope.Key(), err)
		}
		fmt.Printf("Seeded grant: %s -> %s\n", g.roleType, g.scope.Key())
	}

	return nil
}

func strPtr(s string) *string {
	return &s
}
