package cnl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// Hello is the greeting both peers send before any frame is exchanged.
const Hello = "CANNELLONIv1"

// ErrBadHello reports a peer that answered with something other than Hello.
var ErrBadHello = errors.New("cnl: bad hello")

// Handshake sends Hello and waits for the peer's greeting concurrently. The
// exchange is bounded by timeout and aborted when ctx is cancelled; in both
// cases the connection deadline is cleared before returning.
func Handshake(ctx context.Context, c net.Conn, timeout time.Duration) error {
	if err := c.SetDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}
	defer c.SetDeadline(time.Time{})

	stop := context.AfterFunc(ctx, func() {
		// Unblocks the pending read and write.
		_ = c.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		_, err := io.WriteString(c, Hello)
		if err != nil {
			err = fmt.Errorf("send hello: %w", err)
		}
		errCh <- err
	}()
	go func() {
		buf := make([]byte, len(Hello))
		_, err := io.ReadFull(c, buf)
		switch {
		case err != nil:
			err = fmt.Errorf("read hello: %w", err)
		case string(buf) != Hello:
			err = fmt.Errorf("%w: got %q", ErrBadHello, buf)
		}
		errCh <- err
	}()

	var first error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && first == nil {
			first = err
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if first != nil {
		return fmt.Errorf("handshake: %w", first)
	}
	return nil
}
