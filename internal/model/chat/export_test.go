package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExportRoundTrip(t *testing.T) {
	turns := []Turn{
		UserTurn("What is attention?"),
		AssistantTurn("注意力机制是一种加权求和。\n它包含 \"query\"、key 和 value。"),
		UserTurn("<b>and</b> transformers?"),
		AssistantTurn(""),
	}

	data, err := MarshalExport(turns)
	require.NoError(t, err)
	require.Equal(t, len(turns), strings.Count(string(data), "\n"), "one record per line")

	parsed, err := ParseExport(data)
	require.NoError(t, err)
	require.Equal(t, turns, parsed)
}

func TestExportEmpty(t *testing.T) {
	data, err := MarshalExport(nil)
	require.NoError(t, err)
	require.Empty(t, data)

	parsed, err := ParseExport(data)
	require.NoError(t, err)
	require.Empty(t, parsed)
}

func TestParseExportRejectsUnknownRole(t *testing.T) {
	_, err := ParseExport([]byte(`{"role":"tool","content":"x"}` + "\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown role")
}

func TestParseExportRejectsMalformedLine(t *testing.T) {
	_, err := ParseExport([]byte(`{"role":"user","content":"ok"}` + "\n" + `{"role":`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 2")
}
