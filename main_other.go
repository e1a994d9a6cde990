//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

// The platform hotkey APIs must be driven from the main thread.
func main() {
	mainthread.Init(run)
}
