package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"alawein/internal/client/orgs"
	"alawein/internal/platform/models"
)

func newOrgHook() (*orgs.Hook, error) {
	uid, err := userID()
	if err != nil {
		return nil, err
	}
	return orgs.New(cli.store, cli.toasts, uid, cli.cfg.CacheTTL), nil
}

func orgsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "orgs",
		Aliases: []string{"organizations"},
		Short:   "Manage organizations and members",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List organizations you belong to",
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := newOrgHook()
			if err != nil {
				return err
			}
			defer h.Close()
			items, err := h.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSLUG\tROLE\tMANAGE")
			for _, o := range items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", o.ID, o.Name, o.Slug, h.CurrentUserRole(o.ID), h.CanManageOrg(o.ID))
			}
			return w.Flush()
		},
	}

	var slug string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an organization owned by you",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newOrgHook()
			if err != nil {
				return err
			}
			defer h.Close()
			org, err := h.Create(cmd.Context(), args[0], slug)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), org.ID)
			return nil
		},
	}
	create.Flags().StringVar(&slug, "slug", "", "URL slug (derived from the name when empty)")

	rename := &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename an organization",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newOrgHook()
			if err != nil {
				return err
			}
			defer h.Close()
			_, err = h.Update(cmd.Context(), args[0], args[1])
			return err
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an organization (owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newOrgHook()
			if err != nil {
				return err
			}
			defer h.Close()
			if err := h.Refresh(cmd.Context()); err != nil {
				return err
			}
			if !h.CanDeleteOrg(args[0]) {
				return fmt.Errorf("only the owner can delete organization %s", args[0])
			}
			return h.Delete(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(list, create, rename, del, membersCmd())
	return cmd
}

func membersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Manage organization members",
	}

	list := &cobra.Command{
		Use:   "list <org-id>",
		Short: "List members of an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newOrgHook()
			if err != nil {
				return err
			}
			defer h.Close()
			if err := h.Refresh(cmd.Context()); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "USER\tROLE")
			for _, m := range h.Memberships() {
				if m.OrganizationID == args[0] {
					fmt.Fprintf(w, "%s\t%s\n", m.UserID, m.Role)
				}
			}
			return w.Flush()
		},
	}

	role := &cobra.Command{
		Use:   "set-role <org-id> <user-id> <admin|member>",
		Short: "Change a member's role",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newOrgHook()
			if err != nil {
				return err
			}
			defer h.Close()
			return h.UpdateMemberRole(cmd.Context(), args[0], args[1], models.Role(args[2]))
		},
	}

	remove := &cobra.Command{
		Use:   "remove <org-id> <user-id>",
		Short: "Remove a member, or leave when user-id is yours",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newOrgHook()
			if err != nil {
				return err
			}
			defer h.Close()
			return h.RemoveMember(cmd.Context(), args[0], args[1])
		},
	}

	cmd.AddCommand(list, role, remove)
	return cmd
}
