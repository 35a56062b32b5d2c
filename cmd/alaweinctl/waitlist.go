package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"alawein/internal/client/email"
	"alawein/internal/client/waitlist"
)

func waitlistCmd() *cobra.Command {
	var product, source string
	cmd := &cobra.Command{
		Use:   "waitlist",
		Short: "Waitlist signups",
	}

	join := &cobra.Command{
		Use:   "join <email> <project>",
		Short: "Join a project's waitlist and send the welcome email",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := waitlist.Signup{Email: args[0], ProjectID: args[1], ProductID: product}
			if source != "" {
				s.Metadata = map[string]interface{}{"source": source}
			}
			res, err := waitlist.Join(cmd.Context(), cli.store, email.NewDispatcher(cli.store, cli.toasts), cli.toasts, s)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "position %d (welcome email sent: %t)\n", res.Entry.Position, res.EmailSent)
			return nil
		},
	}
	join.Flags().StringVar(&product, "product", "", "Product identifier")
	join.Flags().StringVar(&source, "source", "cli", "Recorded in the entry metadata")

	cmd.AddCommand(join)
	return cmd
}

func emailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "email",
		Short: "Send transactional email",
	}

	invite := &cobra.Command{
		Use:   "invite <to> <project> <link>",
		Short: "Send an invite email",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := email.NewDispatcher(cli.store, cli.toasts)
			if !d.SendInvite(cmd.Context(), args[0], args[1], args[2]) {
				return fmt.Errorf("invite not sent")
			}
			return nil
		},
	}

	var body string
	var items []string
	update := &cobra.Command{
		Use:   "update <to> <project> <subject>",
		Short: "Send a product update",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := email.NewDispatcher(cli.store, cli.toasts)
			if !d.SendUpdate(cmd.Context(), args[0], args[2], args[1], body, items) {
				return fmt.Errorf("update not sent")
			}
			return nil
		},
	}
	update.Flags().StringVar(&body, "body", "", "Paragraph shown under the title")
	update.Flags().StringSliceVar(&items, "item", nil, "Bullet item (repeatable)")

	cmd.AddCommand(invite, update)
	return cmd
}
