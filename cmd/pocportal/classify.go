package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperengineering/pocportal/internal/store"
	"github.com/hyperengineering/pocportal/internal/validation"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <poc_uid>",
	Short: "Print one POC's lifecycle classification",
	Args:  cobra.ExactArgs(1),
	RunE:  runClassify,
}

func init() {
	f := classifyCmd.Flags()
	f.StringVar(&asOfFlag, "as-of", "", "Evaluation date (default now)")
	f.StringVar(&dbPathOverride, "db", "", "Database path (overrides config and POCPORTAL_DB_PATH)")
	f.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

func runClassify(cmd *cobra.Command, args []string) error {
	uid := args[0]
	if verr := validation.ValidatePOCUID("poc_uid", uid); verr != nil {
		return fmt.Errorf("%s %s", verr.Field, verr.Message)
	}

	env, err := openLocal()
	if err != nil {
		return err
	}
	defer env.Close()

	asOf, err := resolveAsOf(asOfFlag, env.loc)
	if err != nil {
		return err
	}

	poc, assignments, err := env.store.GetPOC(context.Background(), uid)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("POC %s not found", uid)
	}
	if err != nil {
		return err
	}

	r := env.classifier.Classify(*poc, assignments, asOf)
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, map[string]any{
			"poc_uid":        poc.UID,
			"name":           poc.Name,
			"status_label":   r.StatusLabel(),
			"classification": r,
		})
	}

	w := newTabWriter(out)
	fmt.Fprintf(w, "POC:\t%s\n", poc.UID)
	fmt.Fprintf(w, "Name:\t%s\n", poc.Name)
	fmt.Fprintf(w, "As of:\t%s\n", asOf.Format("2006-01-02"))
	fmt.Fprintf(w, "Lifecycle:\t%s\n", r.Lifecycle)
	if r.Risk != "" {
		fmt.Fprintf(w, "Risk:\t%s\n", r.Risk)
	}
	fmt.Fprintf(w, "Progress:\t%d/%d (%.0f%%)\n", r.Progress.Completed, r.Progress.Total, r.Progress.Percent())
	fmt.Fprintf(w, "Prep:\t%s\n", r.Prep.Label)
	if r.Stall.IsStalled {
		fmt.Fprintf(w, "Stalled:\t%d working days without progress\n", r.Stall.WorkdaysSinceActivity)
	}
	if r.HeartbeatAgeDays != nil {
		fmt.Fprintf(w, "Last heartbeat:\t%.1f days ago\n", *r.HeartbeatAgeDays)
	} else {
		fmt.Fprintln(w, "Last heartbeat:\tnever")
	}
	if r.DaysUntilEnd != nil {
		fmt.Fprintf(w, "Days until end:\t%d\n", *r.DaysUntilEnd)
	}
	fmt.Fprintf(w, "Planned end:\t%s\n", formatDate(poc.PlannedEndDate))
	return w.Flush()
}
