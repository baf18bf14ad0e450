package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperengineering/pocportal/internal/dashboard"
	"github.com/hyperengineering/pocportal/internal/lifecycle"
	"github.com/hyperengineering/pocportal/internal/validation"
	"github.com/spf13/cobra"
)

var (
	dashOwners   []string
	dashRegions  []string
	dashProducts []string
	dashRisks    []string
	dashQuery    string
	dashCategory string
)

// bucketOrder is the tile order printed by the dashboard command.
var bucketOrder = []string{
	"onTrack", "atRisk", "atRiskPrep", "atRiskStalled", "overdue", "inReview",
	"completingThisMonth", "completingNextMonth", "completedLastMonth",
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Print dashboard counts and buckets from the local database",
	Long: `Evaluate the dashboard against the local database without running the server.
Owner, region, product and risk accept repeated flags or comma-separated lists.`,
	Args: cobra.NoArgs,
	RunE: runDashboard,
}

func init() {
	f := dashboardCmd.Flags()
	f.StringSliceVar(&dashOwners, "owner", nil, "Owner user ID or email")
	f.StringSliceVar(&dashRegions, "region", nil, "Owner region")
	f.StringSliceVar(&dashProducts, "product", nil, "Product name")
	f.StringSliceVar(&dashRisks, "risk", nil, "Risk state (Active tab only)")
	f.StringVar(&dashQuery, "q", "", "Search POC name, customer or partner")
	f.StringVar(&dashCategory, "category", "", "Tab: active, in_review or completed")
	f.StringVar(&asOfFlag, "as-of", "", "Evaluation date (default now)")
	f.StringVar(&dbPathOverride, "db", "", "Database path (overrides config and POCPORTAL_DB_PATH)")
	f.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

func runDashboard(cmd *cobra.Command, args []string) error {
	fs := dashboard.FilterState{
		Owners:   dashOwners,
		Regions:  dashRegions,
		Products: dashProducts,
		Query:    strings.TrimSpace(dashQuery),
		Category: lifecycle.LifecycleState(strings.TrimSpace(dashCategory)),
	}
	for _, r := range dashRisks {
		fs.Risks = append(fs.Risks, lifecycle.RiskState(strings.TrimSpace(r)))
	}
	if errs := validation.ValidateDashboardFilter(fs); len(errs) > 0 {
		return filterError(errs)
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

	snap, err := env.store.LoadSnapshot(context.Background())
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	view := dashboard.Build(*snap, env.classifier, fs, asOf)

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, view)
	}

	fmt.Fprintf(out, "As of %s\n\n", asOf.Format("2006-01-02 15:04 MST"))

	w := newTabWriter(out)
	fmt.Fprintln(w, "ACTIVE\tIN REVIEW\tCOMPLETED\tTOTAL")
	fmt.Fprintf(w, "%d\t%d\t%d\t%d\n", view.Counts.Active, view.Counts.InReview, view.Counts.Completed, view.Counts.Total)
	w.Flush()

	fmt.Fprintln(out)
	w = newTabWriter(out)
	fmt.Fprintln(w, "BUCKET\tPOCS")
	for _, name := range bucketOrder {
		fmt.Fprintf(w, "%s\t%d\n", name, view.BucketCounts[name])
	}
	w.Flush()

	fmt.Fprintln(out)
	if len(view.Items) == 0 {
		fmt.Fprintln(out, "No POCs match.")
		return nil
	}
	w = newTabWriter(out)
	fmt.Fprintln(w, "POC\tNAME\tOWNER\tSTATUS\tPLANNED END")
	for _, e := range view.Items {
		owner := e.POC.OwnerID
		if e.Owner != nil {
			owner = e.Owner.Email
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.POC.UID, e.POC.Name, owner, e.Classification.StatusLabel(), formatDate(e.POC.PlannedEndDate))
	}
	return w.Flush()
}

func filterError(errs []validation.ValidationError) error {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = fmt.Sprintf("--%s %s", e.Field, e.Message)
	}
	return errors.New(strings.Join(msgs, "; "))
}
