// Package budget computes the effective token count of a conversation,
// meaning the count that reflects exactly what will be transmitted once
// reasoning settings are applied, and drives the compression decision
// from it.
//
// There is a single code path for "what counts": the user-facing context
// display and the compression trigger both go through
// Manager.EffectiveTokenCount, and the set of turns whose thinking is
// discounted is derived by reusing reasoning.FilterForContext rather than
// by re-implementing its selection, so the two can never disagree.
package budget
