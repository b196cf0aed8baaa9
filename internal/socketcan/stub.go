//go:build !linux

package socketcan

import "github.com/kstaniek/go-socketcan/internal/can"

// Device is unavailable off Linux; Open always fails.
type Device struct{}

func Open(string, Options) (*Device, error) { return nil, ErrUnsupported }

func (*Device) Close() error                     { return nil }
func (*Device) FD() bool                         { return false }
func (*Device) ReadFrame() (can.RawFrame, error) { return can.RawFrame{}, ErrUnsupported }
func (*Device) WriteFrame(can.RawFrame) error    { return ErrUnsupported }
