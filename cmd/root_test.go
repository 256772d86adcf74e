package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"backtest", "forecast", "import", "runs", "validate-config"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "cropcast", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestBacktestCommand_Flags(t *testing.T) {
	for _, name := range []string{"yields", "conditions", "from-db", "states", "from-year", "to-year", "timeout", "format", "out", "metrics-file", "save", "alert"} {
		require.NotNil(t, backtestCmd.Flags().Lookup(name), "backtest should have --%s", name)
	}
	assert.Equal(t, "json", backtestCmd.Flags().Lookup("format").DefValue)
	assert.Equal(t, "0s", backtestCmd.Flags().Lookup("timeout").DefValue)
}

func TestForecastCommand_RequiredFlags(t *testing.T) {
	for _, name := range []string{"commodity", "state", "year"} {
		flag := forecastCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "forecast should have --%s", name)
		assert.Equal(t, []string{"true"}, flag.Annotations["cobra_annotation_bash_completion_one_required_flag"])
	}
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["show"])

	flag := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
}
