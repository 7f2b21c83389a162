package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/infer/pkg/pipeline"
	"github.com/agentstation/infer/pkg/sinks"
)

func testSummary() RunSummary {
	return RunSummary{
		Summary: pipeline.Summary{
			RunID:    "run-1",
			PITs:     4,
			Tasks:    5,
			Duration: 1500 * time.Millisecond,
			Datasets: map[string]sinks.Stats{
				"geonames": {Relations: 2, NoMatches: 1},
				"nwb":      {Relations: 1, Errors: 1},
			},
		},
		Order: []string{"geonames", "nwb"},
	}
}

func TestRunSummaryTable(t *testing.T) {
	data := testSummary().Table()

	assert.Equal(t, []string{"Dataset", "Relations", "No Matches", "Errors"}, data.Headers)
	require.Len(t, data.Rows, 3)
	assert.Equal(t, []string{"Geonames", "2", "1", "0"}, data.Rows[0])
	assert.Equal(t, []string{"Nwb", "1", "0", "1"}, data.Rows[1])
	assert.Equal(t, []string{"Total", "3", "1", "1"}, data.Rows[2])
}

func TestRunSummaryLines(t *testing.T) {
	lines := testSummary().Lines()
	assert.Equal(t, [2]string{"Run", "run-1"}, lines[0])
	assert.Equal(t, [2]string{"Duration", "1.5s"}, lines[len(lines)-1])
}

func TestFormatters(t *testing.T) {
	s := testSummary()

	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatJSON).Format(&buf, s))
	assert.Contains(t, buf.String(), `"runId": "run-1"`)
	assert.NotContains(t, buf.String(), "Order")

	buf.Reset()
	require.NoError(t, NewFormatter(FormatYAML).Format(&buf, s))
	assert.Contains(t, buf.String(), "runId: run-1")

	buf.Reset()
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, s))
	assert.Contains(t, buf.String(), "Geonames")
	assert.Contains(t, buf.String(), "Total")

	buf.Reset()
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, map[string]int{"a": 1}))
	assert.JSONEq(t, `{"a":1}`, buf.String())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)

	assert.Equal(t, FormatYAML, DetectFormat("yaml"))
}
