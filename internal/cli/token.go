package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/haulplan/haulplan/internal/auth"
)

func newTokenCmd() *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator token for the history and status endpoints",
		Long: `Mint an HS256 operator token signed with $JWT_SIGNING_KEY.
The issuer and audience come from $JWT_ISSUER and $JWT_AUDIENCE and must
match the API server's configuration.`,
		Example: `  haulplan token --subject ops@example.com --role admin --ttl 1h`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := auth.NewJWTService(auth.JWTConfig{
				SigningKey: os.Getenv("JWT_SIGNING_KEY"),
				Issuer:     os.Getenv("JWT_ISSUER"),
				Audience:   os.Getenv("JWT_AUDIENCE"),
			})

			token, expiresAt, err := svc.GenerateToken(subject, auth.Role(role), ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "token subject (operator identity)")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleViewer), "viewer or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}
