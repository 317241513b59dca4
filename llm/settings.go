package llm

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// StripPolicy is the user-selected rule governing which turns' reasoning
// content is removed before replay to a provider.
type StripPolicy string

const (
	// StripNone replays every stored thinking block.
	StripNone StripPolicy = "none"

	// StripAll removes thinking from every turn before replay.
	StripAll StripPolicy = "all"

	// StripAllButLast keeps thinking only on the most recent turn that has
	// any, removing it everywhere else.
	StripAllButLast StripPolicy = "allButLast"
)

// ParseStripPolicy maps a settings-file string onto a StripPolicy.
// Unrecognized values resolve to StripNone so an invalid setting can never
// propagate into the pipeline as an invalid state.
func ParseStripPolicy(s string) StripPolicy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all":
		return StripAll
	case "allbutlast", "all_but_last", "all-but-last":
		return StripAllButLast
	default:
		return StripNone
	}
}

// ReasoningFormat selects how reasoning is replayed to a provider: as the
// provider's native thinking blocks or as a plain side-channel field.
type ReasoningFormat string

const (
	FormatField  ReasoningFormat = "field"
	FormatNative ReasoningFormat = "native"
)

// ParseReasoningFormat maps a settings-file string onto a ReasoningFormat,
// defaulting to FormatField.
func ParseReasoningFormat(s string) ReasoningFormat {
	if strings.EqualFold(strings.TrimSpace(s), string(FormatNative)) {
		return FormatNative
	}
	return FormatField
}

// ReasoningEffort is the optional provider-side effort hint.
type ReasoningEffort string

const (
	EffortLow    ReasoningEffort = "low"
	EffortMedium ReasoningEffort = "medium"
	EffortHigh   ReasoningEffort = "high"
)

// ReasoningSettings is the read-only per-call snapshot of the user's
// reasoning preferences. It is threaded explicitly through decode, encode
// and budget calls; there is no global settings state.
type ReasoningSettings struct {
	// Enabled requests reasoning output from providers that support it.
	Enabled bool

	// IncludeInContext replays stored reasoning back to the provider on
	// subsequent requests.
	IncludeInContext bool

	// IncludeInResponse shows reasoning in the response surface.
	IncludeInResponse bool

	// Format selects native thinking blocks vs. a side-channel field.
	Format ReasoningFormat

	// StripFromContext removes stored reasoning from replayed history.
	StripFromContext StripPolicy

	// Effort is an optional effort hint. Empty means unset.
	Effort ReasoningEffort

	// MaxTokens caps provider-side reasoning. Zero means unset.
	MaxTokens int
}

// DefaultReasoningSettings returns the documented defaults: reasoning on,
// shown in responses, replayed as a field, never replayed into context and
// never stripped.
func DefaultReasoningSettings() ReasoningSettings {
	return ReasoningSettings{
		Enabled:           true,
		IncludeInContext:  false,
		IncludeInResponse: true,
		Format:            FormatField,
		StripFromContext:  StripNone,
	}
}

// reasoningSettingsYAML is the on-disk shape. Pointer fields distinguish
// "absent, keep default" from an explicit false.
type reasoningSettingsYAML struct {
	Enabled           *bool  `yaml:"enabled"`
	IncludeInContext  *bool  `yaml:"include_in_context"`
	IncludeInResponse *bool  `yaml:"include_in_response"`
	Format            string `yaml:"format"`
	StripFromContext  string `yaml:"strip_from_context"`
	Effort            string `yaml:"effort"`
	MaxTokens         int    `yaml:"max_tokens"`
}

// ParseReasoningSettings decodes a YAML settings snippet over the defaults.
// Enum-valued fields go through the forgiving parsers above; only a YAML
// syntax error is fatal.
func ParseReasoningSettings(data []byte) (ReasoningSettings, error) {
	set := DefaultReasoningSettings()
	var raw reasoningSettingsYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return set, fmt.Errorf("failed to parse reasoning settings: %w", err)
	}
	if raw.Enabled != nil {
		set.Enabled = *raw.Enabled
	}
	if raw.IncludeInContext != nil {
		set.IncludeInContext = *raw.IncludeInContext
	}
	if raw.IncludeInResponse != nil {
		set.IncludeInResponse = *raw.IncludeInResponse
	}
	if raw.Format != "" {
		set.Format = ParseReasoningFormat(raw.Format)
	}
	if raw.StripFromContext != "" {
		set.StripFromContext = ParseStripPolicy(raw.StripFromContext)
	}
	switch strings.ToLower(strings.TrimSpace(raw.Effort)) {
	case string(EffortLow):
		set.Effort = EffortLow
	case string(EffortMedium):
		set.Effort = EffortMedium
	case string(EffortHigh):
		set.Effort = EffortHigh
	}
	if raw.MaxTokens > 0 {
		set.MaxTokens = raw.MaxTokens
	}
	return set, nil
}
