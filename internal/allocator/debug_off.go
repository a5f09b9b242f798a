//go:build !debug

package allocator

import "unsafe"

// Non-debug builds take no extra action on every allocation; see debug.go.
const debugForceGC = false

func debugPostAllocValidate(a *Allocator, ptr unsafe.Pointer, size uintptr) {}
