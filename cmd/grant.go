package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/workpermit/internal/authz"
	directorypg "github.com/frahmantamala/workpermit/internal/directory/postgres"
	"github.com/frahmantamala/workpermit/internal/grant"
	grantpg "github.com/frahmantamala/workpermit/internal/grant/postgres"
	"github.com/frahmantamala/workpermit/pkg/logger"
)

var grantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Manage approval grants",
	Long:  `Add, remove and list the rules deciding who may sign the engineer and ISG slots`,
}

var (
	grantTenantID     int64
	grantRole         string
	grantIdentityID   int64
	grantOrgRoleID    int64
	grantDepartmentID int64
	grantSubtree      bool
	grantCreatedBy    int64
	grantID           int64
)

var addGrantCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a grant for exactly one identity, org role or department",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withGrantService(cmd.Context(), func(ctx context.Context, svc *grant.Service, _ *authz.Service) error {
			roleType, err := grant.ParseRoleType(grantRole)
			if err != nil {
				return err
			}
			scope, err := grant.NewScope(flagID(grantIdentityID), flagID(grantOrgRoleID), flagID(grantDepartmentID), grantSubtree)
			if err != nil {
				return err
			}
			id, err := svc.AddGrant(ctx, grantTenantID, roleType, scope, grantCreatedBy)
			if err != nil {
				return err
			}
			fmt.Printf("grant %d added: %s %s\n", id, roleType, scope.Key())
			return nil
		})
	},
}

var removeGrantCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove a grant by id; removing a missing grant succeeds",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withGrantService(cmd.Context(), func(ctx context.Context, svc *grant.Service, _ *authz.Service) error {
			if err := svc.RemoveGrant(ctx, grantTenantID, grantID); err != nil {
				return err
			}
			fmt.Printf("grant %d removed\n", grantID)
			return nil
		})
	},
}

var listGrantCmd = &cobra.Command{
	Use:   "list",
	Short: "List grants with their human-readable description",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withGrantService(cmd.Context(), func(ctx context.Context, _ *grant.Service, az *authz.Service) error {
			roleTypes := grant.RoleTypes
			if grantRole != "" {
				roleType, err := grant.ParseRoleType(grantRole)
				if err != nil {
					return err
				}
				roleTypes = []grant.RoleType{roleType}
			}

			out := make(map[grant.RoleType][]authz.ApproverDescription, len(roleTypes))
			for _, roleType := range roleTypes {
				rules, err := az.ListAuthorizedApprovers(ctx, grantTenantID, roleType)
				if err != nil {
					return err
				}
				out[roleType] = rules
			}
			return printJSON(out)
		})
	},
}

var checkGrantCmd = &cobra.Command{
	Use:   "check",
	Short: "Explain whether an identity may sign a role's slot",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withGrantService(cmd.Context(), func(ctx context.Context, _ *grant.Service, az *authz.Service) error {
			roleType, err := grant.ParseRoleType(grantRole)
			if err != nil {
				return err
			}
			decision, err := az.Decide(ctx, grantTenantID, roleType, grantIdentityID)
			if err != nil {
				return err
			}
			return printJSON(authz.CheckResponse{RoleType: string(roleType), Decision: decision})
		})
	},
}

func withGrantService(ctx context.Context, fn func(ctx context.Context, svc *grant.Service, az *authz.Service) error) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log := logger.LoggerWrapper()

	stores, err := openStores(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer stores.Close()

	policy := approvalPolicy(cfg.Approval)
	svc := grant.NewService(grantpg.NewGrantRepository(stores.Gorm), policy, log)
	az := authz.NewService(svc, directorypg.NewDirectoryRepository(stores.SQL), policy, log)
	return fn(ctx, svc, az)
}

// flagID maps an unset (zero) id flag to nil.
func flagID(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	grantCmd.PersistentFlags().Int64VarP(&grantTenantID, "tenant", "t", 0, "tenant id")
	_ = grantCmd.MarkPersistentFlagRequired("tenant")

	addGrantCmd.Flags().StringVar(&grantRole, "role", "", "role type: engineer or isg")
	addGrantCmd.Flags().Int64Var(&grantIdentityID, "identity", 0, "grant to one identity")
	addGrantCmd.Flags().Int64Var(&grantOrgRoleID, "org-role", 0, "grant to every holder of an org role")
	addGrantCmd.Flags().Int64Var(&grantDepartmentID, "department", 0, "grant to the members of a department")
	addGrantCmd.Flags().BoolVar(&grantSubtree, "subtree", false, "extend a department grant to its descendants")
	addGrantCmd.Flags().Int64Var(&grantCreatedBy, "by", 0, "identity recorded as the grant's author")
	_ = addGrantCmd.MarkFlagRequired("role")
	addGrantCmd.MarkFlagsMutuallyExclusive("identity", "org-role", "department")

	removeGrantCmd.Flags().Int64Var(&grantID, "id", 0, "grant id")
	_ = removeGrantCmd.MarkFlagRequired("id")

	listGrantCmd.Flags().StringVar(&grantRole, "role", "", "only this role type")

	checkGrantCmd.Flags().StringVar(&grantRole, "role", "", "role type: engineer or isg")
	checkGrantCmd.Flags().Int64Var(&grantIdentityID, "identity", 0, "identity to check")
	_ = checkGrantCmd.MarkFlagRequired("role")
	_ = checkGrantCmd.MarkFlagRequired("identity")

	grantCmd.AddCommand(addGrantCmd, removeGrantCmd, listGrantCmd, checkGrantCmd)
	rootCmd.AddCommand(grantCmd)
}
