//go:build !debug

package gc

const debugBuild = false

func debugAssert(cond bool, err error) {}
