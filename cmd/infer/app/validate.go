package app

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstation/infer/internal/output"
	"github.com/agentstation/infer/pkg/logging"
	"github.com/agentstation/infer/pkg/normalize"
	"github.com/agentstation/infer/pkg/overrides"
	"github.com/agentstation/infer/pkg/rules"
)

// NewValidateCommand creates the validate command.
func (a *App) NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [dataset...]",
		Short: "Load and check a source's rules file",
		Long: `Validate loads the rules file of the source dataset, compiles every
filter and name expression, and builds every override index, without
contacting the search backend.`,
		Example: `  infer validate --source tgn --rules ./rules`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.config.Source == "" {
				return a.config.Validate()
			}

			set, err := rules.LoadDir(a.config.RulesDir, a.config.Source, args...)
			if err != nil {
				return err
			}

			data := output.Data{
				Headers:         []string{"Dataset", "Rules", "Types", "Overrides"},
				ColumnAlignment: []output.Align{output.AlignLeft, output.AlignRight, output.AlignLeft, output.AlignRight},
			}
			ctx := logging.WithLogger(cmd.Context(), a.logger)
			urn := normalize.Default()
			for _, dataset := range set.Datasets() {
				var types []string
				nOverrides := 0
				for _, r := range set.Rules(dataset) {
					idx, err := overrides.ForRule(r, urn)
					if err != nil {
						return err
					}
					for _, d := range idx.Duplicates() {
						logging.FromContext(logging.WithRule(ctx, r.ID)).Warn().Str("key", d).Msg("Duplicate override source, last entry wins")
					}
					nOverrides += idx.Len()
					types = append(types, strings.Join(r.Types.From, "|")+" -> "+r.Types.To)
				}
				data.Rows = append(data.Rows, []string{
					dataset,
					strconv.Itoa(len(set.Rules(dataset))),
					strings.Join(types, ", "),
					strconv.Itoa(nOverrides),
				})
			}

			format := output.DetectFormat(a.config.Format)
			if format != output.FormatTable {
				return output.NewFormatter(format).Format(cmd.OutOrStdout(), data.Rows)
			}
			return output.NewFormatter(format).Format(cmd.OutOrStdout(), data)
		},
	}
}
