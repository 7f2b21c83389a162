package output

import (
	"strconv"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agentstation/infer/pkg/pipeline"
)

// RunSummary renders a pipeline summary: one row per reference dataset and
// a totals row.
type RunSummary struct {
	pipeline.Summary `yaml:",inline"`
	Order []string `json:"-" yaml:"-"`
}

// Table implements Tabular.
func (s RunSummary) Table() Data {
	caser := cases.Title(language.English)
	data := Data{
		Headers:         []string{"Dataset", "Relations", "No Matches", "Errors"},
		ColumnAlignment: []Align{AlignLeft, AlignRight, AlignRight, AlignRight},
	}
	for _, dataset := range s.Order {
		st := s.Datasets[dataset]
		data.Rows = append(data.Rows, []string{
			caser.String(dataset),
			strconv.Itoa(st.Relations),
			strconv.Itoa(st.NoMatches),
			strconv.Itoa(st.Errors),
		})
	}
	t := s.Totals()
	data.Rows = append(data.Rows, []string{
		"Total",
		strconv.Itoa(t.Relations),
		strconv.Itoa(t.NoMatches),
		strconv.Itoa(t.Errors),
	})
	return data
}

// Lines returns the run counters as label/value pairs.
func (s RunSummary) Lines() [][2]string {
	return [][2]string{
		{"Run", s.RunID},
		{"PITs", strconv.Itoa(s.PITs)},
		{"Skipped", strconv.Itoa(s.Skipped)},
		{"Without rules", strconv.Itoa(s.Unmatched)},
		{"Tasks", strconv.Itoa(s.Tasks)},
		{"Duration", s.Duration.Round(time.Millisecond).String()},
	}
}
