package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	goVault "github.com/MrEthical07/goVault"
	"github.com/spf13/cobra"
)

func newRegisterCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "register USERNAME",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := a.readNewPassword(cmd, "Password: ")
			if err != nil {
				return err
			}
			u, err := a.engine.Register(cmd.Context(), args[0], pw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s)\n", u.Username, u.ID)
			return nil
		},
	}
}

func newLoginCmd(a *app) *cobra.Command {
	var code string
	cmd := &cobra.Command{
		Use:   "login USERNAME",
		Short: "Log in and print a session id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := goVault.WithDeviceInfo(cmd.Context(), "vaultctl")
			pw, err := a.readSecret(cmd, "Password: ")
			if err != nil {
				return err
			}

			sess, err := a.engine.LoginWithCode(ctx, args[0], pw, code)
			if errors.Is(err, goVault.ErrTwoFactorRequired) {
				fmt.Fprint(cmd.ErrOrStderr(), "Authenticator or backup code: ")
				code, err = a.readLine(cmd)
				if err != nil {
					return err
				}
				sess, err = a.engine.LoginWithCode(ctx, args[0], pw, strings.TrimSpace(code))
			}
			if err != nil {
				var locked *goVault.LockedError
				if errors.As(err, &locked) {
					return fmt.Errorf("account locked until %s", locked.Until.Local().Format(time.RFC1123))
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sess.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "TOTP or backup code")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := a.sessionID()
			if err != nil {
				return err
			}
			return a.engine.Logout(cmd.Context(), id)
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user behind the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, sess, err := a.currentUser(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "username\t%s\n", u.Username)
			fmt.Fprintf(w, "user id\t%s\n", u.ID)
			fmt.Fprintf(w, "two-factor\t%t\n", u.TwoFactorEnabled())
			if u.TwoFactorEnabled() {
				fmt.Fprintf(w, "backup codes left\t%d\n", u.BackupCodesRemaining())
			}
			fmt.Fprintf(w, "session created\t%s\n", sess.CreatedAt.Format(time.RFC3339))
			return w.Flush()
		},
	}
}

func newSessionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List the current user's sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, current, err := a.currentUser(cmd.Context())
			if err != nil {
				return err
			}
			sessions, err := a.engine.ListSessions(cmd.Context(), u.ID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDEVICE\tCREATED\tLAST ACTIVITY")
			for _, s := range sessions {
				id := s.ID
				if id == current.ID {
					id += " *"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", id, s.DeviceInfo,
					s.CreatedAt.Format(time.RFC3339), s.LastActivity.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	var all bool
	revoke := &cobra.Command{
		Use:   "revoke [SESSION_ID]",
		Short: "Revoke one session, or all with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, _, err := a.currentUser(cmd.Context())
			if err != nil {
				return err
			}
			if all {
				n, err := a.engine.RevokeAllSessions(cmd.Context(), u.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "revoked %d sessions\n", n)
				return nil
			}
			if len(args) != 1 {
				return errors.New("session id required unless --all is set")
			}
			return a.engine.RevokeSession(cmd.Context(), u.ID, args[0])
		},
	}
	revoke.Flags().BoolVar(&all, "all", false, "revoke every session, including this one")
	cmd.AddCommand(revoke)
	return cmd
}

func newPasswdCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change the password and re-encrypt the vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, _, err := a.currentUser(cmd.Context())
			if err != nil {
				return err
			}
			old, err := a.readSecret(cmd, "Current password: ")
			if err != nil {
				return err
			}
			pw, err := a.readNewPassword(cmd, "New password: ")
			if err != nil {
				return err
			}
			if err := a.engine.ChangePassword(cmd.Context(), u.ID, old, pw); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "password changed")
			return nil
		},
	}
}

func newDeleteAccountCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-account",
		Short: "Delete the account, its vault and its history",
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
			if err := a.engine.DeleteAccount(cmd.Context(), u.ID, pw); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", u.Username)
			return nil
		},
	}
}

func newEventsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent security events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, _, err := a.currentUser(cmd.Context())
			if err != nil {
				return err
			}
			events, err := a.engine.SecurityEvents(cmd.Context(), u.ID, limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, ev := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\n", ev.Timestamp.Format(time.RFC3339), ev.EventType, formatDetails(ev.Details))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum events to show (0 for all)")
	return cmd
}

func newSweepCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove idle sessions from the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := a.engine.SweepSessions(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d sessions\n", n)
			return nil
		},
	}
}

func newReportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print the effective security settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := a.engine.SecurityReport()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "password hash\targon2id m=%dKiB t=%d p=%d\n", r.Argon2.Memory, r.Argon2.Time, r.Argon2.Parallelism)
			fmt.Fprintf(w, "vault kdf\targon2id m=%dKiB t=%d p=%d (concurrency %d)\n",
				r.VaultKDF.Memory, r.VaultKDF.Time, r.VaultKDF.Parallelism, r.VaultKDF.Concurrency)
			fmt.Fprintf(w, "totp\t%s, %d digits, skew %d\n", r.TOTPAlgorithm, r.TOTPDigits, r.TOTPSkewSteps)
			fmt.Fprintf(w, "backup codes\t%d\n", r.BackupCodeCount)
			fmt.Fprintf(w, "lockout\t%d failures, %s\n", r.LockoutThreshold, r.LockoutDuration)
			fmt.Fprintf(w, "session idle timeout\t%s\n", r.SessionIdleTimeout)
			fmt.Fprintf(w, "revoke on password change\t%t\n", r.RevokeOnPasswordChange)
			fmt.Fprintf(w, "audit sink\t%t\n", r.AuditSinkAttached)
			return w.Flush()
		},
	}
}

func formatDetails(details map[string]string) string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+details[k])
	}
	return strings.Join(parts, " ")
}
