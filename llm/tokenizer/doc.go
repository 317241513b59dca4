// Package tokenizer provides token counting over canonical turns, with a
// character-based estimator and an exact tiktoken-backed counter for
// OpenAI-family models.
package tokenizer
