package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newTwoFactorCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "2fa",
		Short: "Manage two-factor authentication",
	}

	enable := &cobra.Command{
		Use:   "enable",
		Short: "Enable TOTP, replacing any existing secret and backup codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, _, err := a.currentUser(cmd.Context())
			if err != nil {
				return err
			}
			setup, err := a.engine.Enable2FA(cmd.Context(), u.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "secret: %s\n", setup.Provisioning.SecretBase32)
			fmt.Fprintf(out, "uri:    %s\n", setup.Provisioning.URI)
			printBackupCodes(out, setup.BackupCodes)
			return nil
		},
	}

	disable := &cobra.Command{
		Use:   "disable",
		Short: "Disable two-factor authentication",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, _, err := a.currentUser(cmd.Context())
			if err != nil {
				return err
			}
			pw, err := a.readSecret(cmd, "Password: ")
			if err != nil {
				return err
			}
			if err := a.engine.Disable2FA(cmd.Context(), u.ID, pw); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "two-factor authentication disabled")
			return nil
		},
	}

	regen := &cobra.Command{
		Use:   "backup-codes",
		Short: "Issue a new set of backup codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, _, err := a.currentUser(cmd.Context())
			if err != nil {
				return err
			}
			codes, err := a.engine.RegenerateBackupCodes(cmd.Context(), u.ID)
			if err != nil {
				return err
			}
			printBackupCodes(cmd.OutOrStdout(), codes)
			return nil
		},
	}

	cmd.AddCommand(enable, disable, regen)
	return cmd
}

func printBackupCodes(w io.Writer, codes []string) {
	fmt.Fprintln(w, "backup codes (each works once):")
	for _, c := range codes {
		fmt.Fprintf(w, "  %s\n", c)
	}
}
