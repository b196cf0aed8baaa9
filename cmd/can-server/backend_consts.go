package main

import "time"

const (
	defaultTxSlots    = 1024 // transmit queue slots (priority ordered)
	defaultRxBuffer   = 1024 // received frames buffered ahead of the hub
	serialReadBufSize = 4096 // per read() buffer for serial backend
	// largeBufferReclaimThreshold is the capacity above which the temporary
	// serial RX accumulation buffer is discarded and reallocated once empty,
	// so a burst of line noise does not pin a large backing array.
	largeBufferReclaimThreshold = 16 * 1024
	rxBackoffMin                = 20 * time.Millisecond
	rxBackoffMax                = 500 * time.Millisecond
)

// sleepFn allows tests to intercept backoff sleeps.
var sleepFn = time.Sleep

// rxBackoff doubles the pause between failing device reads, from
// rxBackoffMin up to rxBackoffMax. The zero value starts at rxBackoffMin.
type rxBackoff struct{ cur time.Duration }

// next returns the pause to take now and doubles the following one.
func (b *rxBackoff) next() time.Duration {
	d := max(b.cur, rxBackoffMin)
	b.cur = min(d*2, rxBackoffMax)
	return d
}

// reset is called after a successful read.
func (b *rxBackoff) reset() { b.cur = 0 }
