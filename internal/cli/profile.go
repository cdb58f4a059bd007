package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sakif/userbase/internal/auth"
	"github.com/sakif/userbase/internal/service"
)

func newProfileCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage account profiles",
	}
	cmd.AddCommand(newProfileSetCmd(rt))
	return cmd
}

// newProfileSetCmd edits profile rows directly; the web pages only read them.
// Flags that are not given keep their stored value.
func newProfileSetCmd(rt *runtime) *cobra.Command {
	var fullName, bio string

	cmd := &cobra.Command{
		Use:   "set <username>",
		Short: "Create or update the profile of an existing account",
		Example: `  userbase profile set alice --full-name "Alice Liddell"
  userbase profile set alice --bio "Curious."`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			username := args[0]

			db, err := rt.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			passwords, err := auth.NewPasswordServiceWithCost(rt.cfg.BcryptCost)
			if err != nil {
				return err
			}
			accounts := service.NewAccountService(db.Accounts(), db.Profiles(), passwords, rt.logger)

			view, err := accounts.Profile(ctx, username)
			if err != nil {
				return err
			}
			if view.Profile != nil {
				if !cmd.Flags().Changed("full-name") {
					fullName = view.Profile.FullName
				}
				if !cmd.Flags().Changed("bio") {
					bio = view.Profile.Bio
				}
			}

			profile, err := accounts.UpdateProfile(ctx, username, fullName, bio)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "profile %d saved for %s\n", profile.ID, username)
			return nil
		},
	}

	cmd.Flags().StringVar(&fullName, "full-name", "", "Display name")
	cmd.Flags().StringVar(&bio, "bio", "", "Short biography")

	return cmd
}
