package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/okian/oarbit/internal/domain/model"
	"github.com/okian/oarbit/internal/domain/validate"
	"github.com/okian/oarbit/internal/orchestrator"
	"github.com/okian/oarbit/pkg/logger"
	"github.com/spf13/cobra"
)

// submitOutput is the --json shape of submit and resume.
type submitOutput struct {
	State   orchestrator.State   `json:"state"`
	Created orchestrator.Created `json:"created"`
	Result  *model.ProcessResult `json:"result,omitempty"`
	Plan    string               `json:"plan,omitempty"`
	Error   string               `json:"error,omitempty"`
}

func newSubmitCommand(cc *commandContext) *cobra.Command {
	var (
		noProcess bool
		planPath  string
	)
	cmd := &cobra.Command{
		Use:   "submit <draft.yaml>",
		Short: "Persist a draft session and rate it",
		Long: "Creates the session, its pieces, boats and crews one call at a time, then processes it.\n" +
			"When a call fails the plan is saved so `oarbit resume` can continue without creating duplicates.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, athletes, err := ReadDraftFile(args[0])
			if err != nil {
				return err
			}
			if planPath == "" {
				planPath = args[0] + ".plan.json"
			}
			orch, err := cc.orchestrator(athletes, !noProcess)
			if err != nil {
				return err
			}

			plan, err := orch.Submit(cmd.Context(), session)
			if plan == nil {
				if errors.Is(err, validate.ErrStructural) {
					report := validate.Draft(session, roster(athletes))
					_ = cc.print(cmd, report, draftTables(report)...)
				}
				return err
			}
			return cc.finish(cmd, plan, planPath, err)
		},
	}
	cmd.Flags().BoolVar(&noProcess, "no-process", false, "Store the session without rating it")
	cmd.Flags().StringVar(&planPath, "plan", "", "Where to save the plan on failure (default <draft>.plan.json)")
	return cmd
}

func newResumeCommand(cc *commandContext) *cobra.Command {
	var noProcess bool
	cmd := &cobra.Command{
		Use:   "resume <plan.json>",
		Short: "Continue a submit that stopped part way",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := readPlan(args[0])
			if err != nil {
				return err
			}
			orch, err := cc.orchestrator(nil, !noProcess)
			if err != nil {
				return err
			}
			return cc.finish(cmd, plan, args[0], orch.Run(cmd.Context(), plan))
		},
	}
	cmd.Flags().BoolVar(&noProcess, "no-process", false, "Stop before rating the session")
	return cmd
}

func (c *commandContext) orchestrator(athletes []model.Athlete, autoProcess bool) (*orchestrator.Orchestrator, error) {
	cl, err := c.client()
	if err != nil {
		return nil, err
	}
	r := roster(athletes)
	return orchestrator.New(cl,
		orchestrator.WithLogger(c.log.Named("orchestrator")),
		orchestrator.WithAutoProcess(autoProcess),
		orchestrator.WithValidator(func(s model.Session) validate.Report { return validate.Session(s, r) }),
	), nil
}

// finish reports the outcome of a plan run. A failed run saves the plan to
// path; a complete one removes a saved plan.
func (c *commandContext) finish(cmd *cobra.Command, plan *orchestrator.Plan, path string, runErr error) error {
	out := submitOutput{State: plan.State(), Created: plan.Created(), Result: plan.Result}

	if runErr != nil {
		out.Error = runErr.Error()
		if err := writePlan(path, plan); err != nil {
			return errors.Join(runErr, err)
		}
		out.Plan = path
		_ = c.print(cmd, out,
			renderCreated(out.State, out.Created),
			fmt.Sprintf("stopped: %v\nresume with: oarbit resume %s", runErr, path),
		)
		return runErr
	}

	if plan.Complete() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.log.Warn(cmd.Context(), "remove plan file", logger.String("path", path), logger.Error(err))
		}
	}
	tables := []string{renderCreated(out.State, out.Created)}
	if plan.Result != nil {
		tables = append(tables, renderChanges(plan.Result.UpdatedRatings))
	}
	return c.print(cmd, out, tables...)
}

func writePlan(path string, plan *orchestrator.Plan) error {
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPlanFile, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("%w: %w", ErrPlanFile, err)
	}
	return nil
}

func readPlan(path string) (*orchestrator.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlanFile, err)
	}
	var plan orchestrator.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlanFile, err)
	}
	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("%w: %s has no steps", ErrPlanFile, path)
	}
	return &plan, nil
}

func newProcessCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process <session-id>",
		Short: "Rate a stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := cc.orchestrator(nil, true)
			if err != nil {
				return err
			}
			res, err := orch.ProcessSession(cmd.Context(), args[0])
			if errors.Is(err, model.ErrAlreadyProcessed) {
				return fmt.Errorf("%w; use `oarbit recalculate` to rebuild ratings", err)
			}
			if err != nil {
				return err
			}
			return cc.print(cmd, res, renderChanges(res.UpdatedRatings))
		},
	}
}

func newRecalculateCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "recalculate",
		Short: "Rebuild every rating from the stored sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			orch, err := cc.orchestrator(nil, true)
			if err != nil {
				return err
			}
			if err := orch.Recalculate(cmd.Context()); err != nil {
				return err
			}
			return cc.print(cmd, map[string]bool{"recalculated": true}, "ratings recalculated")
		},
	}
}

func newSessionCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "session <session-id>",
		Short: "Show a stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := cc.client()
			if err != nil {
				return err
			}
			s, err := cl.Session(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return cc.print(cmd, s, renderSession(s))
		},
	}
}
