package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/meatlens/backend/internal/domain"
	"github.com/meatlens/backend/internal/infrastructure/feed"
)

// inputFlags select where listings come from
type inputFlags struct {
	input  string
	url    string
	site   string
	source string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.input, "input", "i", "", `JSON file of listings, or "-" for stdin`)
	cmd.Flags().StringVar(&f.url, "url", "", "fetch listings from a scraper feed url (default feed.url)")
	cmd.Flags().StringVar(&f.site, "site", "", "site name recorded in learning stats and reports")
	cmd.Flags().StringVar(&f.source, "source", "", "default source kind of the listings: primary or secondary")
}

func (f *inputFlags) sourceKind() (domain.SourceKind, error) {
	switch f.source {
	case "":
		return "", nil
	case string(domain.SourcePrimary), string(domain.SourceSecondary):
		return domain.SourceKind(f.source), nil
	default:
		return "", fmt.Errorf("--source must be primary or secondary, got %q", f.source)
	}
}

func (o *rootOptions) readProducts(cmd *cobra.Command, f *inputFlags) ([]domain.RawProduct, error) {
	source, err := f.sourceKind()
	if err != nil {
		return nil, err
	}

	switch {
	case f.input == "-":
		return feed.ReadProducts(cmd.InOrStdin(), o.app.Config.Feed.RecordsPath, defaultSource(source))
	case f.input != "":
		path, err := homedir.Expand(f.input)
		if err != nil {
			return nil, err
		}
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer file.Close()
		return feed.ReadProducts(file, o.app.Config.Feed.RecordsPath, defaultSource(source))
	default:
		client, err := o.app.Feed(f.url, source)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidRequest) {
				return nil, errors.New("no input: pass --input, --url or set feed.url")
			}
			return nil, err
		}
		return client.FetchProducts(cmd.Context())
	}
}

func defaultSource(source domain.SourceKind) domain.SourceKind {
	if source == "" {
		return domain.SourcePrimary
	}
	return source
}

func newClassifyCommand(opts *rootOptions) *cobra.Command {
	flags := &inputFlags{}
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify listings and record them with the auto-learner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			products, err := opts.readProducts(cmd, flags)
			if err != nil {
				return err
			}

			results, err := opts.app.Classifier.ClassifyBatch(cmd.Context(), products)
			if err != nil {
				return fmt.Errorf("classification failed: %w", err)
			}
			report := opts.app.Learner.ProcessResults(cmd.Context(), results, flags.site)

			return writeJSON(cmd, struct {
				Results []domain.ClassifiedProduct `json:"results"`
				Report  domain.LearningReport      `json:"report"`
			}{results, report})
		},
	}
	flags.register(cmd)
	return cmd
}

func newUnifyCommand(opts *rootOptions) *cobra.Command {
	flags := &inputFlags{}
	var cycleID string
	cmd := &cobra.Command{
		Use:   "unify",
		Short: "Classify listings and merge them across retailers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			products, err := opts.readProducts(cmd, flags)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			results, err := opts.app.Classifier.ClassifyBatch(ctx, products)
			if err != nil {
				return fmt.Errorf("classification failed: %w", err)
			}
			opts.app.Learner.ProcessResults(ctx, results, flags.site)
			unified := opts.app.Unifier.Unify(results)

			if cycleID == "" {
				cycleID = uuid.NewString()
			}
			persisted := false
			if opts.app.Sink != nil {
				if err := opts.app.Sink.SaveUnified(ctx, cycleID, unified); err != nil {
					return err
				}
				persisted = true
			}

			return writeJSON(cmd, struct {
				CycleID   string                  `json:"cycleId"`
				Unified   []domain.UnifiedProduct `json:"unified"`
				Count     int                     `json:"count"`
				Persisted bool                    `json:"persisted"`
			}{cycleID, unified, len(unified), persisted})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&cycleID, "cycle", "", "scan cycle id for the sink (default random)")
	return cmd
}

func newFilterCommand(opts *rootOptions) *cobra.Command {
	flags := &inputFlags{}
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Screen listings for meat-domain relevance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			products, err := opts.readProducts(cmd, flags)
			if err != nil {
				return err
			}
			return writeJSON(cmd, opts.app.Filter.EvaluateBatch(products))
		},
	}
	flags.register(cmd)
	return cmd
}
