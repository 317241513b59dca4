// Package gemini adapts the Google Gemini generateContent API. Reasoning
// here is a flag, not a field or a block type: any part may carry
// thought=true, marking its text as a thought summary, with an optional
// thoughtSignature for replay. The adapter maps flagged parts onto
// canonical thinking blocks and re-flags them on encode when the settings
// keep reasoning in context.
package gemini
