//go:build !taskdash_debug

package frame

const debugAsserts = false
