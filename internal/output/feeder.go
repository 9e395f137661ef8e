// ABOUTME: Background feeder draining the ring buffer into the device
// ABOUTME: Handles blocking writes, device recovery and pause/quit signals
package output

import "log"

// feed runs until quit is set. Each iteration either sleeps (paused or
// nothing queued) or marks a chunk in flight, writes it to the device
// with the lock released, and retires whatever the hardware accepted.
// A failed write after a failed recovery counts as zero bytes accepted;
// a single underrun never kills playback.
func (e *Engine) feed() {
	e.mu.Lock()
	e.feederUp = true
	e.cond.Broadcast()

	for !e.quit {
		if e.buffering || e.paused {
			e.cond.Wait()
			continue
		}

		chunk := e.dev.PeriodBytes()
		if n := e.buf.length; chunk > n {
			chunk = n
		}
		if n := e.buf.contiguous(); chunk > n {
			chunk = n
		}
		if e.cfg.Workarounds.DelayChunking {
			// The delay query cannot see data sitting in a blocking
			// write; 10 ms slices bound the clock error.
			if n := e.format.FramesToBytes(e.format.Rate / 100); chunk > n {
				chunk = n
			}
		}

		if chunk == 0 {
			e.cond.Wait()
			continue
		}

		e.buf.mark(chunk)
		window := e.buf.window()
		dev := e.dev
		e.mu.Unlock()

		frames, err := dev.Write(window)

		e.mu.Lock()
		accepted := 0
		if err != nil {
			// Errors caused by an intentional drop during shutdown,
			// flush or pause are expected; anything else gets a reset
			// attempt.
			if !e.quit && !e.buffering && !e.paused {
				if rerr := dev.Recover(err); rerr != nil {
					log.Printf("output: device write failed, chunk dropped: %v", rerr)
				}
			}
		} else {
			accepted = e.format.FramesToBytes(frames)
		}

		e.buf.complete(accepted)
		e.cond.Broadcast()
	}

	e.feederUp = false
	e.mu.Unlock()
	close(e.feederDone)
}
