package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BoronSpoon/equipment-reservation/internal/config"
	"github.com/BoronSpoon/equipment-reservation/internal/google"
)

func newAuthCmd() *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize reservesync with a Google account",
		Long: `Run the installed-app OAuth flow: visit the printed URL, grant access and
paste the authorization code. The token is stored in the configured token
file.

Not needed when a service account credentials file is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(configPath)
			if err != nil {
				return err
			}
			auth := cfg.GoogleAuth()
			if auth.CredentialsFile != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "credentials file %s is configured, no token needed\n", auth.CredentialsFile)
				return nil
			}
			if auth.ClientID == "" || auth.ClientSecret == "" {
				return fmt.Errorf("google.client_id and google.client_secret are required")
			}

			if code == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Visit this URL to authorize reservesync:\n\n%s\n\nAuthorization code: ", google.AuthURL(auth))
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read authorization code: %w", err)
				}
				code = strings.TrimSpace(line)
			}
			if code == "" {
				return fmt.Errorf("authorization code is empty")
			}

			if err := google.SaveToken(cmd.Context(), auth, code); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token saved to %s\n", google.NewFileTokenProvider(auth.TokenFile).Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Authorization code (prompted for when empty)")

	return cmd
}
