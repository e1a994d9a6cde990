package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

var ErrNoDevices = errors.New("no capture devices found")
var ErrSelectionCancelled = errors.New("device selection cancelled")

// SelectDevice shows a raw-mode picker on the terminal and returns the chosen
// input. With a single device it returns it without prompting.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	switch len(devices) {
	case 0:
		return nil, ErrNoDevices
	case 1:
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	idx, err := pickDevice(os.Stdin, os.Stdout, devices)
	if err != nil {
		return nil, err
	}
	return &devices[idx], nil
}

func pickDevice(in io.Reader, out io.Writer, devices []DeviceInfo) (int, error) {
	cursor := 0
	render := func() {
		fmt.Fprint(out, "\r\x1b[J")
		fmt.Fprint(out, "Microphone for push-to-talk (↑/↓ or j/k, Enter):\r\n\r\n")
		for i, d := range devices {
			note := ""
			if IsBluetooth(d.Name) {
				note = " \x1b[33m(headset mic, reduced quality)\x1b[0m"
			}
			if i == cursor {
				fmt.Fprintf(out, "  \x1b[1;36m> %s%s\x1b[0m\r\n", d.Name, note)
			} else {
				fmt.Fprintf(out, "    %s%s\r\n", d.Name, note)
			}
		}
	}
	up := func() {
		if cursor > 0 {
			cursor--
		}
	}
	down := func() {
		if cursor < len(devices)-1 {
			cursor++
		}
	}

	render()
	buf := make([]byte, 3)
	for {
		n, err := in.Read(buf)
		if err != nil {
			return 0, fmt.Errorf("reading input: %w", err)
		}

		switch {
		case n == 1 && (buf[0] == '\r' || buf[0] == '\n'):
			fmt.Fprint(out, "\r\n")
			return cursor, nil
		case n == 1 && (buf[0] == 3 || buf[0] == 'q'): // Ctrl+C
			fmt.Fprint(out, "\r\n")
			return 0, ErrSelectionCancelled
		case n == 1 && buf[0] == 'k', n == 3 && buf[0] == 0x1b && buf[2] == 'A':
			up()
		case n == 1 && buf[0] == 'j', n == 3 && buf[0] == 0x1b && buf[2] == 'B':
			down()
		}

		fmt.Fprintf(out, "\x1b[%dA", len(devices)+2)
		render()
	}
}
