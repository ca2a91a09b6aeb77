package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	goVault "github.com/MrEthical07/goVault"
	"github.com/spf13/cobra"
)

// The CLI stores the vault as a flat map of names to secrets.
type entries map[string]string

func newVaultCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Read and write the encrypted vault",
	}

	var asJSON bool
	get := &cobra.Command{
		Use:   "get [NAME]",
		Short: "Print one entry, or every entry",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, key, err := a.unlock(cmd)
			if err != nil {
				return err
			}
			data, err := a.loadEntries(cmd.Context(), sessionID, key)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				v, ok := data[args[0]]
				if !ok {
					return fmt.Errorf("no entry named %q", args[0])
				}
				fmt.Fprintln(out, v)
				return nil
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(data)
			}
			names := make([]string, 0, len(data))
			for name := range data {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "%s=%s\n", name, data[name])
			}
			return nil
		},
	}
	get.Flags().BoolVar(&asJSON, "json", false, "print every entry as JSON")

	set := &cobra.Command{
		Use:   "set NAME VALUE",
		Short: "Add or replace an entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.updateEntries(cmd, func(data entries) error {
				data[args[0]] = args[1]
				return nil
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm NAME",
		Short: "Remove an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.updateEntries(cmd, func(data entries) error {
				if _, ok := data[args[0]]; !ok {
					return fmt.Errorf("no entry named %q", args[0])
				}
				delete(data, args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(get, set, rm)
	return cmd
}

func (a *app) unlock(cmd *cobra.Command) (string, []byte, error) {
	sessionID, err := a.sessionID()
	if err != nil {
		return "", nil, err
	}
	pw, err := a.readSecret(cmd, "Master password: ")
	if err != nil {
		return "", nil, err
	}
	key, err := a.engine.UnlockVault(cmd.Context(), sessionID, pw)
	if err != nil {
		return "", nil, err
	}
	return sessionID, key, nil
}

// loadEntries treats a vault that was never written as empty.
func (a *app) loadEntries(ctx context.Context, sessionID string, key []byte) (entries, error) {
	data := entries{}
	err := a.engine.LoadVault(ctx, sessionID, key, &data)
	if errors.Is(err, goVault.ErrVaultNotFound) {
		return entries{}, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (a *app) updateEntries(cmd *cobra.Command, mutate func(entries) error) error {
	sessionID, key, err := a.unlock(cmd)
	if err != nil {
		return err
	}
	data, err := a.loadEntries(cmd.Context(), sessionID, key)
	if err != nil {
		return err
	}
	if err := mutate(data); err != nil {
		return err
	}
	return a.engine.SaveVault(cmd.Context(), sessionID, key, data)
}
