package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/oarbit/internal/domain/model"
	"github.com/okian/oarbit/internal/domain/projection"
	"github.com/okian/oarbit/internal/domain/timefmt"
	"github.com/okian/oarbit/internal/domain/validate"
	"github.com/spf13/cobra"
)

func newValidateCommand(cc *commandContext) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "validate <draft.yaml>",
		Short: "Check a draft session and list the switches between pieces",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, athletes, err := ReadDraftFile(args[0])
			if err != nil {
				return err
			}

			var report validate.DraftReport
			if remote {
				cl, err := cc.client()
				if err != nil {
					return err
				}
				if report, err = cl.Validate(cmd.Context(), session, athletes); err != nil {
					return err
				}
			} else {
				report = validate.Draft(session, roster(athletes))
			}

			if err := cc.print(cmd, report, draftTables(report)...); err != nil {
				return err
			}
			if !report.Valid {
				return fmt.Errorf("%w: %d error(s)", ErrInvalid, len(report.Errors))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Validate on the server instead of locally")
	return cmd
}

func draftTables(report validate.DraftReport) []string {
	var tables []string
	if len(report.Errors) > 0 {
		tables = append(tables, renderIssues("Errors", report.Errors))
	}
	if len(report.Warnings) > 0 {
		tables = append(tables, renderIssues("Warnings", report.Warnings))
	}
	if len(report.Transitions) > 0 {
		tables = append(tables, renderSwitches(report.Transitions))
	}
	if len(report.Boats) > 0 {
		tables = append(tables, renderFills(report.Boats))
	}
	if report.Valid {
		tables = append(tables, "valid")
	}
	return tables
}

func newPreviewCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <draft.yaml>",
		Short: "Show how a draft session would move ratings and ranks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, _, err := ReadDraftFile(args[0])
			if err != nil {
				return err
			}
			cl, err := cc.client()
			if err != nil {
				return err
			}
			p, err := cl.Preview(cmd.Context(), session)
			if errors.Is(err, projection.ErrUnavailable) {
				return cc.print(cmd, p, "no comparisons possible: every piece needs two boats with finish times and crews")
			}
			if err != nil {
				return err
			}
			return cc.print(cmd, p, renderProjection(p))
		},
	}
}

func newTimeCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "time <m:ss.t | seconds>...",
		Short: "Convert between segmented times and seconds",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0, len(args))
			for _, a := range args {
				secs, err := timefmt.Parse(a)
				if err != nil {
					return err
				}
				rows = append(rows, []string{a, strconv.FormatFloat(secs, 'f', 1, 64), timefmt.Format(secs)})
			}
			return cc.print(cmd, rows, renderTable("", []string{"Input", "Seconds", "Time"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignRight}))
		},
	}
}

func roster(athletes []model.Athlete) validate.Roster {
	if len(athletes) == 0 {
		return nil
	}
	return validate.NewRoster(athletes)
}

func shortList(ids []string) string {
	return strings.Join(ids, ", ")
}
