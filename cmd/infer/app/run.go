package app

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/agentstation/infer/internal/output"
	"github.com/agentstation/infer/pkg/errors"
	"github.com/agentstation/infer/pkg/logging"
	"github.com/agentstation/infer/pkg/normalize"
	"github.com/agentstation/infer/pkg/pipeline"
	"github.com/agentstation/infer/pkg/pits"
	"github.com/agentstation/infer/pkg/rules"
	"github.com/agentstation/infer/pkg/sinks"
)

// NewRunCommand creates the run command.
func (a *App) NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [dataset...]",
		Short: "Reconcile PITs against reference datasets",
		Long: `Run reads ndjson PITs and reconciles them against the given reference
datasets, or against every dataset in the source's rules file when none
are given.`,
		Example: `  infer run --source tgn --input tgn.pits.ndjson
  infer run geonames --source tgn --rules ./rules --output ./out -c 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args)
		},
	}

	cmd.Flags().StringVarP(&a.config.Input, "input", "i", a.config.Input, "ndjson PIT file, - for stdin")
	cmd.Flags().StringVar(&a.config.OutputDir, "output", a.config.OutputDir, "directory for the ndjson output files")
	cmd.Flags().IntVarP(&a.config.Concurrency, "concurrency", "c", a.config.Concurrency, "maximum simultaneous searches")
	cmd.Flags().StringSliceVar(&a.config.ElasticsearchAddresses, "es-url", a.config.ElasticsearchAddresses, "Elasticsearch node URLs")
	cmd.Flags().StringVar(&a.config.NameField, "name-field", a.config.NameField, "document field the name query runs against")
	cmd.Flags().StringVar(&a.config.MetricsFile, "metrics-file", a.config.MetricsFile, "write Prometheus metrics to this file after the run")
	cmd.Flags().BoolVar(&a.config.ExpandURNs, "expand-urns", a.config.ExpandURNs, "write known dataset URLs instead of urn:hgid identifiers")

	return cmd
}

func (a *App) run(cmd *cobra.Command, datasets []string) error {
	if err := a.config.Validate(); err != nil {
		return err
	}
	ctx := logging.WithLogger(cmd.Context(), a.logger)

	set, err := rules.LoadDir(a.config.RulesDir, a.config.Source, datasets...)
	if err != nil {
		return err
	}

	g, err := a.Gateway()
	if err != nil {
		return err
	}

	input, name, err := a.openInput(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = input.Close() }()

	urn := normalize.Default()
	opts := []pipeline.Option{
		pipeline.WithConcurrency(a.config.Concurrency),
		pipeline.WithNormalizer(urn),
		pipeline.WithLogger(a.logger),
		pipeline.WithSource(a.config.Source),
		pipeline.WithRegistry(prometheus.NewRegistry()),
	}
	if a.config.ExpandURNs {
		opts = append(opts, pipeline.WithExpander(urn.Expand))
	}

	p, err := pipeline.New(set, g, sinks.Dir(a.config.OutputDir), opts...)
	if err != nil {
		return errors.WrapConfig("pipeline", err)
	}

	summary, runErr := p.Run(ctx, pits.NewReader(input, name))

	if a.config.MetricsFile != "" && p.State() == pipeline.StateClosed {
		if err := prometheus.WriteToTextfile(a.config.MetricsFile, p.Registry()); err != nil {
			a.logger.Warn().Err(err).Str("file", a.config.MetricsFile).Msg("Failed to write metrics")
		}
	}

	if len(summary.Datasets) > 0 {
		if err := a.printSummary(cmd.OutOrStdout(), output.RunSummary{Summary: summary, Order: set.Datasets()}); err != nil {
			return err
		}
	}
	return runErr
}

func (a *App) openInput(cmd *cobra.Command) (io.ReadCloser, string, error) {
	if a.config.Input == "" || a.config.Input == "-" {
		return io.NopCloser(cmd.InOrStdin()), "stdin", nil
	}
	f, err := os.Open(a.config.Input)
	if err != nil {
		return nil, "", errors.NewConfigError("input", fmt.Sprintf("cannot open %s", a.config.Input),
			errors.WrapIO("open", a.config.Input, err))
	}
	return f, a.config.Input, nil
}

func (a *App) printSummary(w io.Writer, s output.RunSummary) error {
	format := output.DetectFormat(a.config.Format)
	if format == output.FormatTable {
		for _, line := range s.Lines() {
			if _, err := fmt.Fprintf(w, "%-14s %s\n", line[0]+":", line[1]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return output.NewFormatter(format).Format(w, s)
}
