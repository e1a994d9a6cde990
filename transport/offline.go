package transport

import "fmt"

// Offline stands in for a Conn when the service could not be reached. Every
// emit fails, so sessions still run locally and log what they could not send.
type Offline struct {
	Endpoint string
}

func (o Offline) Emit(event string, _ any) error {
	return fmt.Errorf("%w: %s: %w", ErrEmit, event, ErrNotConnected)
}
