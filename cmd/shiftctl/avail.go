package main

import (
	"fmt"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/shiftsync/internal/api"
)

func availCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "avail",
		Short: "Show and edit the availability calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := request()
			defer cancel()
			return printAvailability(app.client.Availability(ctx))
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "toggle <date>...",
			Short: "Advance each date unset → available → unavailable → unset",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx, cancel := request()
				defer cancel()
				var (
					v   api.AvailabilityView
					err error
				)
				for _, date := range args {
					if v, err = app.client.Toggle(ctx, date); err != nil {
						return err
					}
				}
				return printAvailability(v, nil)
			},
		},
		&cobra.Command{
			Use:   "save",
			Short: "Commit pending edits",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx, cancel := request()
				defer cancel()
				return printAvailability(app.client.SaveAvailability(ctx))
			},
		},
		&cobra.Command{
			Use:   "discard",
			Short: "Drop pending edits",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx, cancel := request()
				defer cancel()
				return printAvailability(app.client.DiscardAvailability(ctx))
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Clear every saved date",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx, cancel := request()
				defer cancel()
				return printAvailability(app.client.ResetAvailability(ctx))
			},
		},
		ruleCmd(),
	)
	return cmd
}

func ruleCmd() *cobra.Command {
	var req api.RuleRequest
	cmd := &cobra.Command{
		Use:   "rule <rrule>",
		Short: "Set every occurrence of an RFC 5545 rule, e.g. FREQ=WEEKLY;BYDAY=SA,SU",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Rule = args[0]
			ctx, cancel := request()
			defer cancel()
			resp, err := app.client.ApplyRule(ctx, req)
			if err != nil {
				return err
			}
			if app.jsonOut {
				outputJSON(resp)
				return nil
			}
			fmt.Printf("%d dates set to %s (unsaved, run: shiftctl avail save)\n", resp.Applied, req.State)
			return nil
		},
	}
	today := time.Now().Format(time.DateOnly)
	cmd.Flags().StringVar(&req.State, "state", "unavailable", "state to set: available, unavailable or unset")
	cmd.Flags().StringVar(&req.From, "from", today, "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&req.Until, "until", time.Now().AddDate(0, 3, 0).Format(time.DateOnly), "last date, YYYY-MM-DD")
	return cmd
}

func printAvailability(v api.AvailabilityView, err error) error {
	if err != nil {
		return err
	}
	if app.jsonOut {
		outputJSON(v)
		return nil
	}
	dates := make([]string, 0, len(v.Dates))
	for d := range v.Dates {
		dates = append(dates, d)
	}
	slices.Sort(dates)

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, d := range dates {
		fmt.Fprintf(tw, "%s\t%s\n", d, v.Dates[d])
	}
	_ = tw.Flush()
	if len(dates) == 0 {
		fmt.Println("No dates set.")
	}
	if v.Dirty {
		fmt.Println("Unsaved changes.")
	}
	return nil
}
