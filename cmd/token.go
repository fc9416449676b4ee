package cmd

import (
	"github.com/spf13/cobra"

	"github.com/frahmantamala/workpermit/internal/auth"
	directorypg "github.com/frahmantamala/workpermit/internal/directory/postgres"
	"github.com/frahmantamala/workpermit/pkg/logger"
)

var (
	tokenTenantID   int64
	tokenIdentityID int64
)

// Login is handled upstream; this mints a bearer token for local use.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token for an identity",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		stores, err := openStores(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer stores.Close()

		svc := auth.NewService(directorypg.NewDirectoryRepository(stores.SQL), newTokenGenerator(cfg.Security), logger.LoggerWrapper())
		issued, err := svc.IssueToken(ctx, tokenTenantID, tokenIdentityID)
		if err != nil {
			return err
		}
		return printJSON(issued)
	},
}

func init() {
	tokenCmd.Flags().Int64VarP(&tokenTenantID, "tenant", "t", 0, "tenant id")
	tokenCmd.Flags().Int64VarP(&tokenIdentityID, "identity", "i", 0, "identity id")
	_ = tokenCmd.MarkFlagRequired("tenant")
	_ = tokenCmd.MarkFlagRequired("identity")

	rootCmd.AddCommand(tokenCmd)
}
