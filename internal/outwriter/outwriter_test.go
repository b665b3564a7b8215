package outwriter

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clifelab/devpulse/core/rollup"
	"github.com/clifelab/devpulse/schema"
)

func TestFormatCell(t *testing.T) {
	ratio := 0.1234
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"clife/repo", "clife/repo"},
		{int64(42), "42"},
		{7, "7"},
		{3.5, "3.5"},
		{&ratio, "0.1234"},
		{(*float64)(nil), ""},
		{true, "true"},
		{time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC), "2025-07-01T10:00:00Z"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatCell(c.in))
	}
}

func TestTruncateCell(t *testing.T) {
	assert.Equal(t, "short", truncateCell("short", 10))
	got := truncateCell("clife/some/deeply/nested/repository-name", 20)
	assert.Len(t, []rune(got), 20)
	assert.Equal(t, "...", got[:3])
	assert.Contains(t, got, "repository-name")
}

func TestWriteCSV(t *testing.T) {
	r := schema.NewReport("active-repos", "repo", "commit_cnt", "after_hours_ratio")
	r.Append("clife/alpha", int64(12), 0.25)
	r.Append("clife/beta", int64(3), nil)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	require.NoError(t, WriteCSV(w, r))
	w.Flush()
	require.NoError(t, w.Error())

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"repo", "commit_cnt", "after_hours_ratio"}, rows[0])
	assert.Equal(t, []string{"clife/alpha", "12", "0.25"}, rows[1])
	assert.Equal(t, []string{"clife/beta", "3", ""}, rows[2])
}

func TestColorCellOnlyTouchesBands(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	for _, label := range rollup.BandLabels {
		assert.Equal(t, label, colorCell("band", label))
	}
	assert.Equal(t, "clife/alpha", colorCell("repo", "clife/alpha"))
	assert.Equal(t, "not-a-band", colorCell("band", "not-a-band"))
}
