package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/matheus3301/shiftsync/internal/config"
	"github.com/matheus3301/shiftsync/internal/profile"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the daemon and its live stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := request()
			defer cancel()
			st, err := app.client.Status(ctx)
			if err != nil {
				return err
			}
			if app.jsonOut {
				outputJSON(st)
				return nil
			}
			fmt.Printf("Profile: %s\n", st.Profile)
			fmt.Printf("Viewer:  %s (%s)\n", st.ViewerID, st.Role)
			fmt.Printf("Running: %v\n", st.Running)
			fmt.Printf("Uptime:  %s\n", (time.Duration(st.UptimeMs) * time.Millisecond).Round(time.Second))

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "STORE\tSTATE\tITEMS\tVERSION")
			for _, s := range st.Stores {
				state := "live"
				switch {
				case s.Error != nil:
					state = "error: " + s.Error.Message
				case s.Loading:
					state = "loading"
				case !s.Live:
					state = "idle"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", s.Name, state, s.Items, s.Version)
			}
			return tw.Flush()
		},
	}
}

func profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile [user-id]",
		Short: "Look up a user profile; defaults to your own",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = args[0]
			}
			ctx, cancel := request()
			defer cancel()
			resp, err := app.client.Profile(ctx, id)
			if err != nil {
				return explain(err)
			}
			if app.jsonOut {
				outputJSON(resp)
				return nil
			}
			p := resp.Profile
			fmt.Printf("%s (%s)\n", p.DisplayName, p.ID)
			if p.Role != "" {
				fmt.Printf("Role:       %s\n", p.Role)
			}
			if len(p.RoleCategories) > 0 {
				fmt.Printf("Categories: %v\n", p.RoleCategories)
			}
			if p.Rating != nil {
				fmt.Printf("Rating:     %.1f\n", *p.Rating)
			}
			return nil
		},
	}
}

func callsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "calls",
		Short: "List recent procedure calls sent by this profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := request()
			defer cancel()
			resp, err := app.client.Calls(ctx, limit)
			if err != nil {
				return err
			}
			if app.jsonOut {
				outputJSON(resp)
				return nil
			}
			if len(resp.Calls) == 0 {
				fmt.Println("No calls yet.")
				return nil
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CALL\tPROCEDURE\tSTATUS\tWHEN\tERROR")
			for _, c := range resp.Calls {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					c.CallID, c.Procedure, c.Status, humanize.Time(time.UnixMilli(c.CreatedAt)), dash(c.Error))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of calls")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		Annotations: map[string]string{
			offline: "true",
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if app.jsonOut {
				outputJSON(app.cfg)
				return nil
			}
			fmt.Printf("# %s\n", profile.ConfigPath(app.root))
			return toml.NewEncoder(os.Stdout).Encode(app.cfg)
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		Args:  cobra.NoArgs,
		Annotations: map[string]string{
			offline: "true",
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := profile.ConfigPath(app.root)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := config.Save(path, app.cfg); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}
