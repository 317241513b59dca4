// Package anthropic adapts the Anthropic Messages API. Unlike the
// OpenAI-compatible family, reasoning here is not a side-channel field:
// thinking is a first-class content block type carrying a cryptographic
// signature, and redacted thinking arrives as an opaque block the API
// expects to be replayed verbatim. The adapter maps both onto canonical
// thinking blocks (redacted ones marked hidden) and replays them natively
// when the settings keep reasoning in context.
package anthropic
