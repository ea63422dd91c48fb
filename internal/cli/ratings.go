package cli

import (
	"github.com/okian/oarbit/internal/domain/types"
	"github.com/spf13/cobra"
)

func newLeaderboardCommand(cc *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the top rated athletes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := cc.client()
			if err != nil {
				return err
			}
			entries, err := cl.Leaderboard(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return cc.print(cmd, entries, renderLeaderboard(entries))
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of athletes to show")
	return cmd
}

func newRatingCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rating <athlete-id>",
		Short: "Show one athlete's rating and rank",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := cc.client()
			if err != nil {
				return err
			}
			e, err := cl.Rating(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return cc.print(cmd, e, renderLeaderboard([]types.Entry{e}))
		},
	}
}
