// Package reasoning implements the pure policy functions over the content
// model: extracting thinking blocks, applying strip policies to replayed
// history, joining thoughts into provider side-channel fields and
// estimating their token weight.
//
// Every function is stateless and referentially transparent: inputs are
// never mutated, results depend only on arguments, and calls are safe from
// any number of goroutines.
package reasoning
