//go:build linux

package socketcan

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/kstaniek/go-socketcan/internal/can"
)

type Device struct {
	fd   int
	opts Options
}

func Open(iface string, opts Options) (*Device, error) {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, &DeviceError{Op: "open", Err: fmt.Errorf("socket(AF_CAN): %w", err)}
	}
	fdOn := 0
	if opts.FD {
		fdOn = 1
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FD_FRAMES, fdOn); err != nil {
		// Older kernels may not know this option; that only matters when FD is wanted.
		if opts.FD || err != unix.ENOPROTOOPT {
			_ = unix.Close(fd)
			return nil, &DeviceError{Op: "open", Err: fmt.Errorf("set CAN FD=%v: %w", opts.FD, err)}
		}
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_ERR_FILTER, int(opts.ErrMask&can.CAN_ERR_MASK)); err != nil {
		_ = unix.Close(fd)
		return nil, &DeviceError{Op: "open", Err: fmt.Errorf("set error filter 0x%X: %w", opts.ErrMask, err)}
	}
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		_ = unix.Close(fd)
		return nil, &DeviceError{Op: "open", Err: fmt.Errorf("if %q: %w", iface, err)}
	}
	sa := &unix.SockaddrCAN{Ifindex: ifi.Index}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, &DeviceError{Op: "open", Err: fmt.Errorf("bind(can@%s): %w", iface, err)}
	}
	return &Device{fd: fd, opts: opts}, nil
}

func (d *Device) Close() error { return unix.Close(d.fd) }

// FD reports whether the socket exchanges canfd_frame.
func (d *Device) FD() bool { return d.opts.FD }

// ReadFrame reads one kernel frame. With FD enabled the kernel hands out
// CAN_MTU bytes for classic frames and CANFD_MTU bytes for FD frames.
func (d *Device) ReadFrame() (can.RawFrame, error) {
	var buf [can.CANFD_MTU]byte
	n, err := unix.Read(d.fd, buf[:])
	if err != nil {
		return can.RawFrame{}, &DeviceError{Op: "read", Err: err}
	}
	raw, err := can.DecodeRawFrame(buf[:n])
	if err != nil {
		return can.RawFrame{}, &DeviceError{Op: "read", Err: err}
	}
	return raw, nil
}

// WriteFrame writes one kernel frame. FD frames require an FD socket.
func (d *Device) WriteFrame(raw can.RawFrame) error {
	if raw.IsFD() && !d.opts.FD {
		return &DeviceError{Op: "write", Err: fmt.Errorf("fd frame on classic socket: %w", can.ErrInvalidLength)}
	}
	var buf [can.CANFD_MTU]byte
	n, err := raw.MarshalTo(buf[:])
	if err != nil {
		return &DeviceError{Op: "write", Err: err}
	}
	if _, err := unix.Write(d.fd, buf[:n]); err != nil {
		return &DeviceError{Op: "write", Err: err}
	}
	return nil
}
