package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/warp/subsidy-engine/config"
	"github.com/warp/subsidy-engine/generic"
	"github.com/warp/subsidy-engine/store/sqlite"
	"github.com/warp/subsidy-engine/subsidy"
)

// env is what every command works against once flags are resolved.
type env struct {
	cfg      *config.Config
	store    *sqlite.Store
	service  *subsidy.Service
	reporter *subsidy.Reporter
}

func (e *env) Close() error { return e.store.Close() }

func openEnv(cmd *cobra.Command) (*env, error) {
	configPath, _ := cmd.Flags().GetString("config")
	dbPath, _ := cmd.Flags().GetString("db")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &env{
		cfg:      cfg,
		store:    store,
		service:  subsidy.NewService(store, cfg.NewAllocator(), cfg.DailyRate()),
		reporter: &subsidy.Reporter{Store: store},
	}, nil
}

// newRootCmd builds a fresh command tree; flag state never leaks between runs.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "subsidyctl",
		Short: "Allocate medical-leave subsidies and run reports",
		Long: `subsidyctl records certified leave submissions, derives the subsidy
periods that follow from them and reports subjects over a limit or with
filings past their deadline. It works directly on the SQLite database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides config)")

	rootCmd.AddCommand(newAllocateCmd())
	rootCmd.AddCommand(newAdvanceCmd())
	rootCmd.AddCommand(newReviewCmd())
	rootCmd.AddCommand(newBreachesCmd())
	rootCmd.AddCommand(newOverdueCmd())
	return rootCmd
}

// ─── allocate ───────────────────────────────────────────────────────────────

func newAllocateCmd() *cobra.Command {
	allocateCmd := &cobra.Command{
		Use:   "allocate",
		Short: "Submit a leave and derive its subsidy periods",
		RunE:  runAllocate,
	}
	allocateCmd.Flags().String("subject", "", "Subject (employee) id")
	allocateCmd.Flags().String("start", "", "First day of leave, YYYY-MM-DD")
	allocateCmd.Flags().String("end", "", "Last day of leave, YYYY-MM-DD")
	allocateCmd.Flags().String("category", "", "Medical category, e.g. common_illness")
	allocateCmd.Flags().String("granted", "", "Date the leave was granted (defaults to --start)")
	for _, name := range []string{"subject", "start", "end", "category"} {
		_ = allocateCmd.MarkFlagRequired(name)
	}
	return allocateCmd
}

func runAllocate(cmd *cobra.Command, args []string) error {
	subject, _ := cmd.Flags().GetString("subject")
	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")
	category, _ := cmd.Flags().GetString("category")
	granted, _ := cmd.Flags().GetString("granted")

	period, err := parsePeriod(start, end)
	if err != nil {
		return err
	}
	grantedDate := period.Start
	if granted != "" {
		if grantedDate, err = generic.ParseDate(granted); err != nil {
			return err
		}
	}

	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	result, err := e.service.Allocate(cmd.Context(), subsidy.Submission{
		SubjectID:   subsidy.SubjectID(subject),
		Period:      period,
		Category:    subsidy.Category(category),
		GrantedDate: grantedDate,
	}, e.cfg.Allocation.ThresholdDays)
	if err != nil {
		return err
	}

	printAllocation(cmd.OutOrStdout(), result)
	return nil
}

func parsePeriod(start, end string) (generic.Period, error) {
	s, err := generic.ParseDate(start)
	if err != nil {
		return generic.Period{}, err
	}
	e, err := generic.ParseDate(end)
	if err != nil {
		return generic.Period{}, err
	}
	return generic.NewPeriod(s, e)
}

func printAllocation(w io.Writer, result *subsidy.AllocationResult) {
	if result.Empty() {
		fmt.Fprintln(w, "Nothing to record: the leave is already covered.")
		return
	}
	fmt.Fprintf(w, "Cumulative days: %d\n", result.CumulativeDays)
	fmt.Fprintln(w, "Leaves:")
	for _, l := range result.Leaves {
		fmt.Fprintf(w, "  %s  %s  %3d days  %s\n", l.ID, l.Period, l.TotalDays, l.Category)
	}
	fmt.Fprintln(w, "Subsidy periods:")
	for _, s := range result.Subsidies {
		label := "employer"
		if s.Reimbursable {
			label = "reimbursable, file by " + s.MaxFilingDate.String()
		}
		fmt.Fprintf(w, "  %s  %s  %3d days  %s\n", s.ID, s.Period, s.TotalDays, label)
	}
	fmt.Fprintf(w, "Reimbursable days: %d\n", result.ReimbursableDays())
}

// ─── advance ────────────────────────────────────────────────────────────────

func newAdvanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advance SUBSIDY_ID STATUS",
		Short: "Move a subsidy period to a new workflow status",
		Args:  cobra.ExactArgs(2),
		RunE:  runAdvance,
	}
}

func runAdvance(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	updated, events, err := e.service.AdvanceSubsidy(cmd.Context(), subsidy.IntervalID(args[0]), subsidy.Status(args[1]))
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s  %s  %s\n", updated.ID, updated.Period, updated.Status)
	for _, ev := range events {
		if ev.Type == subsidy.EventClaimTriggered {
			fmt.Fprintf(w, "Claim drafted: %d days x %s = %s\n",
				ev.Claim.Days, ev.Claim.DailyRate.StringFixed(2), ev.Claim.Amount.StringFixed(2))
		}
	}
	return nil
}

// ─── review ─────────────────────────────────────────────────────────────────

func newReviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review LEAVE_ID STATUS",
		Short: "Move a leave interval through document review",
		Long: `Move a leave interval to pending_review, accepted or rejected_documentation.
Rejecting the documentation frees the leave's days for a new submission.`,
		Args: cobra.ExactArgs(2),
		RunE: runReview,
	}
}

func runReview(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	updated, _, err := e.service.ReviewLeave(cmd.Context(), subsidy.IntervalID(args[0]), subsidy.Status(args[1]))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", updated.ID, updated.Period, updated.Status)
	return nil
}

// ─── breaches ───────────────────────────────────────────────────────────────

func newBreachesCmd() *cobra.Command {
	breachesCmd := &cobra.Command{
		Use:   "breaches",
		Short: "List subjects whose accepted reimbursable days exceed a limit",
		RunE:  runBreaches,
	}
	breachesCmd.Flags().String("kind", string(subsidy.BreachGlobal), "global, continuous or non_continuous")
	breachesCmd.Flags().Int("limit", 365, "Limit in days; subjects strictly above it are listed")
	return breachesCmd
}

func runBreaches(cmd *cobra.Command, args []string) error {
	kindFlag, _ := cmd.Flags().GetString("kind")
	limit, _ := cmd.Flags().GetInt("limit")

	kind, err := subsidy.ParseBreachKind(kindFlag)
	if err != nil {
		return err
	}

	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	breaches, err := e.reporter.FindOverThreshold(cmd.Context(), kind, limit)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if len(breaches) == 0 {
		fmt.Fprintf(w, "No subject over %d %s days.\n", limit, kind)
		return nil
	}
	for _, b := range breaches {
		fmt.Fprintf(w, "%s  %d days (limit %d)\n", b.SubjectID, b.TotalDays, b.LimitDays)
		for _, p := range b.Periods {
			fmt.Fprintf(w, "  %s  %s\n", p.ID, p.Period)
		}
	}
	return nil
}

// ─── overdue ────────────────────────────────────────────────────────────────

func newOverdueCmd() *cobra.Command {
	overdueCmd := &cobra.Command{
		Use:   "overdue",
		Short: "List reimbursable periods past their filing deadline",
		RunE:  runOverdue,
	}
	overdueCmd.Flags().String("as-of", "", "Reference date, YYYY-MM-DD (defaults to today)")
	return overdueCmd
}

func runOverdue(cmd *cobra.Command, args []string) error {
	asOfFlag, _ := cmd.Flags().GetString("as-of")
	asOf := generic.Today()
	if asOfFlag != "" {
		var err error
		if asOf, err = generic.ParseDate(asOfFlag); err != nil {
			return err
		}
	}

	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	overdue, err := e.reporter.FindOverdueFilings(cmd.Context(), asOf)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if len(overdue) == 0 {
		fmt.Fprintf(w, "No filing overdue as of %s.\n", asOf)
		return nil
	}
	for _, p := range overdue {
		fmt.Fprintf(w, "%s  %s  %s  file by %s\n", p.SubjectID, p.ID, p.Period, p.MaxFilingDate)
	}
	return nil
}
