package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/matheus3301/shiftsync/internal/api"
	"github.com/matheus3301/shiftsync/internal/instant"
)

const feedNames = "available, my-shifts, jobs, dashboard, conversations"

// feedName accepts dashed spellings of the wire names.
func feedName(arg string) string {
	return strings.ReplaceAll(arg, "-", "_")
}

func feedCmd() *cobra.Command {
	var tab string
	cmd := &cobra.Command{
		Use:   "feed <name>",
		Short: "Show one feed (" + feedNames + ")",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := request()
			defer cancel()
			v, err := app.client.Feed(ctx, feedName(args[0]), tab)
			if err != nil {
				return err
			}
			if app.jsonOut {
				outputJSON(v)
				return nil
			}
			renderFeed(os.Stdout, v)
			return nil
		},
	}
	cmd.Flags().StringVar(&tab, "tab", "", "tab: upcoming|past for my-shifts, unfilled|filled for dashboard")
	return cmd
}

func watchCmd() *cobra.Command {
	var tab string
	cmd := &cobra.Command{
		Use:   "watch <name>",
		Short: "Print a feed every time it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(os.Stdout)
			return app.client.Watch(app.ctx, feedName(args[0]), tab, func(v api.FeedView) error {
				if app.jsonOut {
					return enc.Encode(v)
				}
				fmt.Printf("--- %s\n", time.Now().Format(time.TimeOnly))
				renderFeed(os.Stdout, v)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&tab, "tab", "", "feed tab")
	return cmd
}

func seenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seen",
		Short: "Mark the jobs feed as viewed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := request()
			defer cancel()
			resp, err := app.client.MarkViewed(ctx)
			if err != nil {
				return err
			}
			if app.jsonOut {
				outputJSON(resp)
				return nil
			}
			fmt.Println("Jobs marked as viewed.")
			return nil
		},
	}
}

func filterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "filter [category...]",
		Short: "Restrict the jobs feed to role categories; no arguments clears the filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := request()
			defer cancel()
			v, err := app.client.SetJobFilter(ctx, args)
			if err != nil {
				return err
			}
			if app.jsonOut {
				outputJSON(v)
				return nil
			}
			renderFeed(os.Stdout, v)
			return nil
		},
	}
}

func renderFeed(w io.Writer, v api.FeedView) {
	header := v.Feed
	if v.Tab != "" {
		header += " / " + v.Tab
	}
	switch {
	case v.Error != nil:
		header += fmt.Sprintf(" (error %s: %s)", v.Error.Code, v.Error.Message)
	case v.Loading:
		header += " (loading)"
	case !v.Live:
		header += " (not subscribed)"
	}
	if t, err := time.Parse(time.RFC3339Nano, v.UpdatedAt); err == nil {
		header += ", updated " + humanize.Time(t)
	}
	if v.HasNew {
		header += ", new jobs"
	}
	if len(v.Filter) > 0 {
		header += ", filter: " + strings.Join(v.Filter, ",")
	}
	if v.Feed == api.FeedConversations {
		header += fmt.Sprintf(", %d unread", v.Unread)
	}
	fmt.Fprintln(w, header)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer func() { _ = tw.Flush() }()

	if len(v.Shifts) > 0 {
		fmt.Fprintln(tw, "ID\tDATE\tSTART\tSTATUS\tPAY\tDISTANCE\tFLAGS")
		for _, s := range v.Shifts {
			var flags []string
			if s.IsOffer {
				flags = append(flags, "offer")
			}
			if s.Applied {
				flags = append(flags, "applied")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				s.ID, dash(s.Date), clock(s.StartTime), s.Status, dash(s.TotalPay), dash(s.Distance), strings.Join(flags, ","))
		}
	}
	if len(v.Jobs) > 0 {
		fmt.Fprintln(tw, "ID\tTITLE\tCATEGORIES\tSTATUS\tPOSTED\tFLAGS")
		for _, j := range v.Jobs {
			var flags []string
			if j.New {
				flags = append(flags, "new")
			}
			if j.Applied {
				flags = append(flags, "applied")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				j.ID, dash(j.Title), strings.Join(j.RoleCategories, ","), j.Status, ago(j.CreatedAt), strings.Join(flags, ","))
		}
	}
	if len(v.Conversations) > 0 {
		fmt.Fprintln(tw, "ID\tWITH\tUNREAD\tLAST")
		for _, c := range v.Conversations {
			last := "-"
			if c.LastMessage != nil {
				last = fmt.Sprintf("%s (%s)", c.LastMessage.Text, ago(c.LastMessage.Timestamp))
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", c.ID, strings.Join(c.ParticipantIDs, ","), c.Unread, last)
		}
	}
	if len(v.Shifts) == 0 && len(v.Jobs) == 0 && len(v.Conversations) == 0 && !v.Loading {
		fmt.Fprintln(tw, "Nothing here.")
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func clock(i instant.Instant) string {
	t, ok := i.Time()
	if !ok {
		return "-"
	}
	return t.Local().Format("15:04")
}

func ago(i instant.Instant) string {
	t, ok := i.Time()
	if !ok {
		return "-"
	}
	return humanize.Time(t)
}
