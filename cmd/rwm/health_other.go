//go:build windows || wasm

package main

// checkDiskSpace is unavailable on this platform.
func checkDiskSpace(path string) (uint64, bool) {
	return 0, false
}
