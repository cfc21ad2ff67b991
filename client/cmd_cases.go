package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ecmdash/internal/cases"
	"ecmdash/internal/dashboard"
)

// caseFlags backs the create and edit flag sets.
type caseFlags struct {
	name, manager, description, start, end, status string
}

var (
	createFlags caseFlags
	editFlags   caseFlags
)

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "List, inspect, create and edit cases",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return requireSession(cmd.Context())
	},
}

var casesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every case",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rec := deps.reconciler()
		if err := rec.Refresh(cmd.Context()); err != nil {
			return fmt.Errorf("fetch cases: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderCaseTable(rec.Cases()))
		return nil
	},
}

var casesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseCaseID(args[0])
		if err != nil {
			return err
		}
		rec := deps.reconciler()
		if err := rec.Click(cmd.Context(), id); err != nil {
			return fmt.Errorf("fetch case %d: %w", id, err)
		}
		d, _ := rec.Expanded()
		fmt.Fprintln(cmd.OutOrStdout(), renderDetail(d))
		return nil
	},
}

var casesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a case (admin only)",
	Long: `Create a case. Every field is required; status defaults to CREATED.
Dates are YYYY-MM-DD.`,
	Args: cobra.NoArgs,
	RunE: runCaseCreate,
}

var casesEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a case (admin only)",
	Long:  `Edit a case. Only the flags given are changed.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runCaseEdit,
}

var casesWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the case list and reprint it whenever a case changes",
	Args:  cobra.NoArgs,
	RunE:  runCaseWatch,
}

func init() {
	for _, c := range []struct {
		cmd *cobra.Command
		f   *caseFlags
	}{{casesCreateCmd, &createFlags}, {casesEditCmd, &editFlags}} {
		c.cmd.Flags().StringVar(&c.f.name, "name", "", "case name")
		c.cmd.Flags().StringVar(&c.f.manager, "manager", "", "team manager")
		c.cmd.Flags().StringVar(&c.f.description, "description", "", "description")
		c.cmd.Flags().StringVar(&c.f.start, "start", "", "start date, YYYY-MM-DD")
		c.cmd.Flags().StringVar(&c.f.end, "end", "", "end date, YYYY-MM-DD")
		c.cmd.Flags().StringVar(&c.f.status, "status", "", "one of "+statusNames())
	}
	casesCmd.AddCommand(casesListCmd, casesShowCmd, casesCreateCmd, casesEditCmd, casesWatchCmd)
}

func requireSession(ctx context.Context) error {
	if deps.gate().Check(ctx) == dashboard.RedirectLogin {
		return errors.New("not signed in, run \"ecm login\"")
	}
	return nil
}

// apply copies the non-empty flags onto the draft fields.
func (f caseFlags) apply(name, manager, description *string, start, end *cases.Date, status *cases.Status) error {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(name, f.name)
	set(manager, f.manager)
	set(description, f.description)
	for _, d := range []struct {
		dst *cases.Date
		v   string
	}{{start, f.start}, {end, f.end}} {
		if d.v == "" {
			continue
		}
		parsed, err := cases.ParseDate(d.v)
		if err != nil {
			return err
		}
		*d.dst = parsed
	}
	if f.status != "" {
		s, err := cases.ParseStatus(f.status)
		if err != nil {
			return err
		}
		*status = s
	}
	return nil
}

func runCaseCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	form := deps.form(deps.reconciler())
	if err := form.OpenCreate(ctx); err != nil {
		return err
	}
	d := form.CreateDraft()
	if err := createFlags.apply(&d.Name, &d.TeamManager, &d.Description, &d.Start, &d.End, &d.Status); err != nil {
		return err
	}
	if err := form.SubmitCreate(ctx); err != nil {
		return fmt.Errorf("create case: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Case created.")
	return nil
}

func runCaseEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := parseCaseID(args[0])
	if err != nil {
		return err
	}
	rec := deps.reconciler()
	form := deps.form(rec)
	if !form.CanManage(ctx) {
		return dashboard.ErrForbidden
	}
	if err := rec.Click(ctx, id); err != nil {
		return fmt.Errorf("fetch case %d: %w", id, err)
	}
	if err := form.BeginEdit(ctx); err != nil {
		return err
	}
	d := form.EditDraft()
	if err := editFlags.apply(&d.Name, &d.TeamManager, &d.Description, &d.Start, &d.End, &d.Status); err != nil {
		form.Cancel()
		return err
	}
	if err := form.Save(ctx); err != nil {
		return fmt.Errorf("update case %d: %w", id, err)
	}
	shown, _ := rec.Expanded()
	fmt.Fprintln(cmd.OutOrStdout(), renderDetail(shown))
	return nil
}

func runCaseWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rec := deps.reconciler()
	out := cmd.OutOrStdout()
	if err := rec.Refresh(ctx); err != nil {
		return fmt.Errorf("fetch cases: %w", err)
	}
	fmt.Fprintln(out, renderCaseTable(rec.Cases()))

	events, err := deps.api.Events(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to case events: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return errors.New("event stream closed")
			}
			logger.Debug("case event", zap.String("type", ev.Type), zap.Int64("case_id", ev.CaseID))
			if err := rec.Refresh(ctx); err != nil {
				logger.Warn("refresh after event", zap.Error(err))
				continue
			}
			fmt.Fprintf(out, "\n%s case %d\n%s\n", ev.Type, ev.CaseID, renderCaseTable(rec.Cases()))
		}
	}
}
