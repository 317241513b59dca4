package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStripPolicy(t *testing.T) {
	tests := []struct {
		input string
		want  StripPolicy
	}{
		{"none", StripNone},
		{"all", StripAll},
		{"ALL", StripAll},
		{"allButLast", StripAllButLast},
		{"allbutlast", StripAllButLast},
		{"all_but_last", StripAllButLast},
		{"all-but-last", StripAllButLast},
		{" all ", StripAll},
		{"", StripNone},
		{"bogus", StripNone},
		{"everything", StripNone},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseStripPolicy(tt.input))
		})
	}
}

func TestParseReasoningFormat(t *testing.T) {
	assert.Equal(t, FormatNative, ParseReasoningFormat("native"))
	assert.Equal(t, FormatNative, ParseReasoningFormat("NATIVE"))
	assert.Equal(t, FormatField, ParseReasoningFormat("field"))
	assert.Equal(t, FormatField, ParseReasoningFormat(""))
	assert.Equal(t, FormatField, ParseReasoningFormat("xml"))
}

func TestDefaultReasoningSettings(t *testing.T) {
	set := DefaultReasoningSettings()
	assert.True(t, set.Enabled)
	assert.False(t, set.IncludeInContext)
	assert.True(t, set.IncludeInResponse)
	assert.Equal(t, FormatField, set.Format)
	assert.Equal(t, StripNone, set.StripFromContext)
	assert.Empty(t, set.Effort)
	assert.Zero(t, set.MaxTokens)
}

func TestParseReasoningSettings(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want ReasoningSettings
	}{
		{
			name: "empty input keeps defaults",
			yaml: "",
			want: DefaultReasoningSettings(),
		},
		{
			name: "explicit false differs from absent",
			yaml: "enabled: false\ninclude_in_response: false\n",
			want: ReasoningSettings{
				Enabled:           false,
				IncludeInContext:  false,
				IncludeInResponse: false,
				Format:            FormatField,
				StripFromContext:  StripNone,
			},
		},
		{
			name: "full snapshot",
			yaml: "enabled: true\ninclude_in_context: true\nformat: native\nstrip_from_context: allButLast\neffort: high\nmax_tokens: 2048\n",
			want: ReasoningSettings{
				Enabled:           true,
				IncludeInContext:  true,
				IncludeInResponse: true,
				Format:            FormatNative,
				StripFromContext:  StripAllButLast,
				Effort:            EffortHigh,
				MaxTokens:         2048,
			},
		},
		{
			name: "invalid enum values fall back",
			yaml: "format: binary\nstrip_from_context: everything\neffort: extreme\n",
			want: DefaultReasoningSettings(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := ParseReasoningSettings([]byte(tt.yaml))
			require.NoError(t, err)
			assert.Equal(t, tt.want, set)
		})
	}
}

func TestParseReasoningSettings_SyntaxError(t *testing.T) {
	_, err := ParseReasoningSettings([]byte("enabled: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse reasoning settings")
}
