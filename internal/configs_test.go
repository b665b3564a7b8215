package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clifelab/devpulse/schema"
)

func validInput() *schema.ConfigRawInput {
	return &schema.ConfigRawInput{
		Backend:    "sqlite",
		APIBaseURL: "https://api.example.com/",
		CorpDomain: "Corp.CN",
		Months:     3,
		Workers:    4,
		Output:     "text",
	}
}

func TestProcessAndValidateDefaults(t *testing.T) {
	var cfg schema.Config
	require.NoError(t, ProcessAndValidate(&cfg, validInput()))

	assert.Equal(t, schema.SQLiteBackend, cfg.DBBackend)
	assert.Equal(t, "data/devpulse.db", cfg.DBConnect)
	assert.Equal(t, "https://api.example.com", cfg.APIBaseURL)
	assert.Equal(t, "Authorization", cfg.APIAuthHeader)
	assert.Equal(t, "Bearer", cfg.APIAuthPrefix)
	assert.Equal(t, "corp.cn", cfg.CorpDomain)
	assert.Equal(t, schema.TextOut, cfg.Output)
}

func TestProcessAndValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*schema.ConfigRawInput)
	}{
		{"bad backend", func(in *schema.ConfigRawInput) { in.Backend = "oracle" }},
		{"postgres needs dsn", func(in *schema.ConfigRawInput) { in.Backend = "postgres" }},
		{"zero months", func(in *schema.ConfigRawInput) { in.Months = 0 }},
		{"negative top", func(in *schema.ConfigRawInput) { in.Top = -1 }},
		{"too many workers", func(in *schema.ConfigRawInput) { in.Workers = 64 }},
		{"negative overlap", func(in *schema.ConfigRawInput) { in.OverlapDays = -1 }},
		{"bad output", func(in *schema.ConfigRawInput) { in.Output = "json" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(in)
			var cfg schema.Config
			assert.Error(t, ProcessAndValidate(&cfg, in))
		})
	}
}

func TestProcessAndValidateWorkersDefault(t *testing.T) {
	in := validInput()
	in.Workers = 0
	var cfg schema.Config
	require.NoError(t, ProcessAndValidate(&cfg, in))
	assert.Equal(t, DefaultWorkers, cfg.Workers)
}
