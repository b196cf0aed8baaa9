package serial

import (
	"errors"
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// ErrPortConfig reports settings rejected before the device is touched.
var ErrPortConfig = errors.New("serial: invalid port config")

// Port abstracts tarm/serial for testability.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Open opens the UART at name with 8N1 framing. A zero readTimeout makes
// reads block until data arrives.
func Open(name string, baud int, readTimeout time.Duration) (Port, error) {
	if name == "" || baud <= 0 || readTimeout < 0 {
		return nil, fmt.Errorf("%w: device=%q baud=%d read_timeout=%s", ErrPortConfig, name, baud, readTimeout)
	}
	p, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: readTimeout,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	})
	if err != nil {
		return nil, fmt.Errorf("serial open %s: %w", name, err)
	}
	return p, nil
}
