package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matheus3301/shiftsync/internal/api"
	"github.com/matheus3301/shiftsync/internal/apperr"
)

func act(req api.ActRequest, done string) error {
	ctx, cancel := request()
	defer cancel()
	resp, err := app.client.Act(ctx, req)
	if err != nil {
		return explain(err)
	}
	if app.jsonOut {
		outputJSON(resp)
		return nil
	}
	fmt.Printf(done+"\n", resp.ID)
	return nil
}

// explain rewrites well-known failures into one readable line.
func explain(err error) error {
	var (
		verr *apperr.ValidationError
		nf   *apperr.NotFoundError
		perr *apperr.ProcedureError
	)
	switch {
	case errors.As(err, &verr):
		return fmt.Errorf("not allowed: %s", verr.Message)
	case errors.As(err, &nf):
		return fmt.Errorf("%s %s is not in your feeds", nf.Kind, nf.ID)
	case errors.As(err, &perr):
		return fmt.Errorf("%s failed (call %s): %v", perr.Procedure, perr.CallID, perr.Err)
	}
	return err
}

func shiftIntentCmd(use, short, intent, done string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <shift-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return act(api.ActRequest{Intent: intent, ID: args[0]}, done)
		},
	}
}

func acceptCmd() *cobra.Command {
	return shiftIntentCmd("accept", "Accept a shift offered to you", api.IntentAccept, "Offer %s accepted.")
}

func declineCmd() *cobra.Command {
	return shiftIntentCmd("decline", "Decline a shift offered to you", api.IntentDecline, "Offer %s declined.")
}

func applyCmd() *cobra.Command {
	return shiftIntentCmd("apply", "Apply for a posted shift", api.IntentApplyShift, "Applied to shift %s.")
}

func cancelCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "cancel <shift-id>",
		Short: "Cancel a confirmed shift before it starts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return act(api.ActRequest{Intent: api.IntentCancel, ID: args[0], Reason: reason}, "Shift %s cancelled.")
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason shown to the operator")
	return cmd
}

func applyJobCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "apply-job <job-id>",
		Short: "Apply for an open job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return act(api.ActRequest{Intent: api.IntentApplyJob, ID: args[0], Message: message}, "Applied to job %s.")
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "note to the operator")
	return cmd
}

func postJobCmd() *cobra.Command {
	var req api.ActRequest
	cmd := &cobra.Command{
		Use:   "post-job",
		Short: "Post a job listing (operators)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.Intent = api.IntentPostJob
			return act(req, "Job %s posted.")
		},
	}
	cmd.Flags().StringVar(&req.Title, "title", "", "job title")
	cmd.Flags().StringSliceVar(&req.Categories, "category", nil, "role category (repeatable)")
	cmd.Flags().StringVar(&req.Location, "location", "", "where the job is")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}
