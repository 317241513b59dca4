// Package llm provides the core conversation types shared across the
// chatflow pipeline: the content-block model, the provider contract, the
// error taxonomy and the reasoning settings snapshot.
// This package has ZERO dependencies on other chatflow packages to avoid
// circular imports. All other packages should import types from here.
package llm
