package rules_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/agentstation/infer/pkg/errors"
	"github.com/agentstation/infer/pkg/pits"
	"github.com/agentstation/infer/pkg/rules"
)

func TestLoadDir(t *testing.T) {
	set, err := rules.LoadDir("testdata", "tgn")
	require.NoError(t, err)

	assert.Equal(t, []string{"geonames", "nwb"}, set.Datasets())
	assert.Equal(t, 4, set.Len())

	geonames := set.Rules("geonames")
	require.Len(t, geonames, 3)

	place := geonames[0]
	assert.Equal(t, "geonames#0", place.ID)
	assert.Equal(t, "geonames", place.Dataset)
	assert.Equal(t, []string{"hg:Place"}, place.Types.From)
	assert.Equal(t, "hg:Place", place.Types.To)
	require.NotNil(t, place.GeoDistance)
	assert.Equal(t, 4000.0, *place.GeoDistance)
	assert.Equal(t, 2, place.TextDistance)
	assert.Equal(t, "hg:sameHgConcept", place.Relation)
	assert.Nil(t, place.Name)

	ok, err := place.AppliesTo(pits.PIT{Type: "hg:Place", URI: "http://vocab.getty.edu/tgn/term/1"})
	require.NoError(t, err)
	assert.False(t, ok)

	province := geonames[1]
	assert.Nil(t, province.GeoDistance)
	require.Len(t, province.Override, 3)
	assert.Equal(t, rules.Override{
		From: "http://vocab.getty.edu/tgn/7003632",
		To:   "http://sws.geonames.org/2743698",
	}, province.Override[0])

	country := geonames[2]
	assert.Equal(t, 0, country.TextDistance)
	assert.Equal(t, rules.LiteralName("Kingdom of the Netherlands"), country.Name)

	nwb := set.Rules("nwb")[0]
	assert.Equal(t, []string{"hg:Place", "hg:Municipality"}, nwb.Types.From)
	assert.Equal(t, 0, nwb.TextDistance)
	require.Len(t, nwb.Override, 1)
	assert.True(t, nwb.Override[0].NoRelation())

	name, err := nwb.ResolveName(pits.PIT{Name: "Leiden"})
	require.NoError(t, err)
	assert.Equal(t, "Leiden (gemeente)", name)
}

func TestLoadRestrict(t *testing.T) {
	set, err := rules.LoadDir("testdata", "tgn", "nwb")
	require.NoError(t, err)
	assert.Equal(t, []string{"nwb"}, set.Datasets())

	_, err = rules.LoadDir("testdata", "tgn", "bag")
	assert.True(t, pkgerrors.IsConfigError(err))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := rules.LoadDir(t.TempDir(), "tgn")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConfigError(err))

	var ioErr *pkgerrors.IOError
	assert.True(t, errors.As(err, &ioErr))
}

func TestParseOrder(t *testing.T) {
	doc := `
nwb:
  - types: {from: hg:Place, to: hg:Place}
    relation: hg:sameHgConcept
bag:
  - types: {from: hg:Street, to: hg:Street}
    relation: hg:sameHgConcept
geonames: []
`
	set, err := rules.Parse([]byte(doc), "order.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"nwb", "bag", "geonames"}, set.Datasets())
	assert.Empty(t, set.Rules("geonames"))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty document", ""},
		{"not yaml", "geonames: [unclosed"},
		{"missing relation", "geonames:\n  - types: {from: hg:Place, to: hg:Place}\n"},
		{"missing target type", "geonames:\n  - types: {from: hg:Place}\n    relation: r\n"},
		{"bad type list", "geonames:\n  - types: {from: [1, 2], to: hg:Place}\n    relation: r\n"},
		{"negative distance", "geonames:\n  - types: {from: hg:Place, to: hg:Place}\n    relation: r\n    textDistance: -1\n"},
		{"name and nameExpr", "geonames:\n  - types: {from: hg:Place, to: hg:Place}\n    relation: r\n    name: a\n    nameExpr: pit.name\n"},
		{"bad filter", "geonames:\n  - types: {from: hg:Place, to: hg:Place}\n    relation: r\n    filter: \"pit.uri.contains(\"\n"},
		{"override without from", "geonames:\n  - types: {from: hg:Place, to: hg:Place}\n    relation: r\n    override:\n      - to: x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rules.Parse([]byte(tt.doc), "bad.yaml")
			require.Error(t, err)
			assert.True(t, pkgerrors.IsConfigError(err), "got %v", err)
		})
	}
}

func TestParseComponent(t *testing.T) {
	doc := "geonames:\n  - types: {from: hg:Place, to: hg:Place}\n    relation: r\n  - types: {from: hg:Place}\n    relation: r\n"
	_, err := rules.Parse([]byte(doc), "bad.yaml")

	var cerr *pkgerrors.ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "rules/geonames#1", cerr.Component)
}

func TestRulesFile(t *testing.T) {
	assert.Equal(t, filepath.Join("rules", "tgn.rules.yaml"), rules.RulesFile("rules", "tgn"))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(rules.RulesFile(dir, "nwb"), []byte("geonames: []\n"), 0o644))
	set, err := rules.LoadDir(dir, "nwb")
	require.NoError(t, err)
	assert.Equal(t, []string{"geonames"}, set.Datasets())
}
