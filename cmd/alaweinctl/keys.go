package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"alawein/internal/client/apikeys"
)

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage your API keys",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List API keys, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h := apikeys.New(cli.store, cli.toasts, cli.cfg.CacheTTL)
			defer h.Close()
			keys, err := h.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPREFIX\tSTATUS\tCREATED")
			for _, k := range keys {
				fmt.Fprintf(w, "%s\t%s\t%s…\t%s\t%s\n", k.ID, k.Name, k.KeyPrefix, k.Status,
					time.Unix(k.CreatedAt, 0).Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	var scopes string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a key and print its secret once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h := apikeys.New(cli.store, cli.toasts, cli.cfg.CacheTTL)
			defer h.Close()
			var sc []string
			if scopes != "" {
				sc = strings.Split(scopes, ",")
			}
			if _, err := h.Create(cmd.Context(), args[0], sc); err != nil {
				return err
			}
			secret, _ := h.NewKey()
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			h.ClearNewKey()
			return nil
		},
	}
	create.Flags().StringVar(&scopes, "scopes", "", "Comma-separated scopes")

	revoke := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h := apikeys.New(cli.store, cli.toasts, cli.cfg.CacheTTL)
			defer h.Close()
			return h.Revoke(cmd.Context(), args[0])
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a key permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h := apikeys.New(cli.store, cli.toasts, cli.cfg.CacheTTL)
			defer h.Close()
			return h.Delete(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(list, create, revoke, del)
	return cmd
}
