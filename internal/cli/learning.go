package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meatlens/backend/internal/domain"
)

func newLearningCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learning",
		Short: "Inspect and act on the auto-learner",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show the running learning counters",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return writeJSON(cmd, opts.app.Learner.Stats())
			},
		},
		&cobra.Command{
			Use:   "review",
			Short: "List classifications awaiting review",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return writeJSON(cmd, opts.app.Learner.ReviewQueue())
			},
		},
		&cobra.Command{
			Use:   "patterns",
			Short: "List discovered unknown words",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return writeJSON(cmd, opts.app.Learner.DiscoveredPatterns())
			},
		},
		&cobra.Command{
			Use:   "dismiss [review-id]",
			Short: "Drop a review entry without changing the tables",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := opts.app.Learner.DismissReview(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "dismissed", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "grade-keyword [keyword] [grade]",
			Short: "Add a keyword to a grade",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := opts.app.Learner.ApproveGradeKeyword(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %q to grade %s (reference version %d)\n",
					args[0], args[1], opts.app.Reference.Current().Version)
				return nil
			},
		},
		newApproveCommand(opts),
		newReportsCommand(opts),
	)
	return cmd
}

func newApproveCommand(opts *rootOptions) *cobra.Command {
	var approval domain.PatternApproval
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Make a product name classify to the given cut",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.app.Learner.Approve(cmd.Context(), approval); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "approved %q as %s (reference version %d)\n",
				approval.OriginalName, approval.NormalizedSuggestion, opts.app.Reference.Current().Version)
			return nil
		},
	}
	cmd.Flags().StringVar(&approval.OriginalName, "name", "", "product name as scraped")
	cmd.Flags().StringVar(&approval.NormalizedSuggestion, "cut", "", "cut the name should classify to")
	cmd.Flags().StringVar(&approval.Grade, "grade", "", "grade of the variation (default regular)")
	cmd.Flags().StringVar(&approval.Category, "category", "", "category when the cut is new")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("cut")
	return cmd
}

func newReportsCommand(opts *rootOptions) *cobra.Command {
	var site string
	var limit int
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List archived learning reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reports, err := opts.app.Learner.Reports(cmd.Context(), site, limit)
			if err != nil {
				return err
			}
			return writeJSON(cmd, reports)
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "only reports for this site")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of reports")
	return cmd
}
