package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"alawein/internal/client/billing"
	"alawein/internal/platform/models"
)

func billingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "billing",
		Short: "Plans, subscription and checkout",
	}

	plans := &cobra.Command{
		Use:   "plans",
		Short: "List available plans",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := billing.New(cli.store, cli.toasts, cli.cfg.CacheTTL)
			defer c.Close()
			items, err := c.Plans(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPRICE\tPRICE ID")
			for _, p := range items {
				fmt.Fprintf(w, "%s\t%s\t%d.%02d %s/%s\t%s\n", p.ID, p.Name, p.Amount/100, p.Amount%100, p.Currency, p.Interval, p.PriceID)
			}
			return w.Flush()
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show your subscription",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := billing.New(cli.store, cli.toasts, cli.cfg.CacheTTL)
			defer c.Close()
			sub, err := c.Subscription(cmd.Context())
			if err != nil {
				return err
			}
			if sub == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "tier: free (no subscription)")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tier: %s\nstatus: %s\neffective: %s\n", sub.Tier, sub.Status, sub.EffectiveTier())
			return nil
		},
	}

	hasTier := &cobra.Command{
		Use:   "has-tier <free|starter|pro|enterprise>",
		Short: "Exit non-zero unless your subscription grants the tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier := models.Tier(args[0])
			if !tier.Valid() {
				return fmt.Errorf("unknown tier %q", args[0])
			}
			c := billing.New(cli.store, cli.toasts, cli.cfg.CacheTTL)
			defer c.Close()
			ok, err := c.HasTier(cmd.Context(), tier)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("subscription does not include %s", tier)
			}
			return nil
		},
	}

	checkout := &cobra.Command{
		Use:   "checkout <plan-id> <price-id>",
		Short: "Start a checkout and print its URL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := billing.New(cli.store, cli.toasts, cli.cfg.CacheTTL)
			defer c.Close()
			s, err := c.Checkout(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.URL)
			return nil
		},
	}

	portal := &cobra.Command{
		Use:   "portal",
		Short: "Print a billing portal URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := billing.New(cli.store, cli.toasts, cli.cfg.CacheTTL)
			defer c.Close()
			url, err := c.Portal(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}

	cmd.AddCommand(plans, status, hasTier, checkout, portal)
	return cmd
}
