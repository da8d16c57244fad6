package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"dirsweep/internal/api"
)

type tokenFlags struct {
	secretFile string
	subject    string
	roles      []string
	ttl        time.Duration
}

func newTokenCmd() *cobra.Command {
	f := &tokenFlags{}
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the sweep API",
		Example: `  dirsweep token --secret-file /etc/dirsweep/jwt.key --subject grafana --role viewer
  dirsweep token --secret-file /etc/dirsweep/jwt.key --subject cron --role operator --ttl 720h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runToken(cmd.OutOrStdout(), f)
		},
	}

	cmd.Flags().StringVar(&f.secretFile, "secret-file", "", "File holding the api.jwt_secret_file signing key")
	cmd.Flags().StringVar(&f.subject, "subject", "", "Who the token is for")
	cmd.Flags().StringSliceVar(&f.roles, "role", []string{api.RoleViewer}, "Role: admin, operator or viewer")
	cmd.Flags().DurationVar(&f.ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("secret-file")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func runToken(w io.Writer, f *tokenFlags) error {
	secret, err := api.LoadSecret(f.secretFile)
	if err != nil {
		return err
	}
	tm, err := api.NewTokenManager(secret, f.ttl)
	if err != nil {
		return err
	}
	token, err := tm.Issue(f.subject, f.roles)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, token)
	return nil
}
