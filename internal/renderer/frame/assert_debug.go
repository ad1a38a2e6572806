//go:build taskdash_debug

package frame

// debugAsserts turns out-of-bounds canvas writes into panics.
const debugAsserts = true
