//go:build !windows

package doctor

import "os/exec"

// resetTerminal undoes raw mode left behind by the evdev hotkey reader.
func resetTerminal() {
	exec.Command("stty", "sane").Run()
}
