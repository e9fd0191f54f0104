package workflow

import (
	"fmt"
	"time"

	"github.com/ruzivolabs/ruzivo/internal/progress"
)

// Var so tests can shrink the clock.
var heartbeatInterval = 5 * time.Second

var heartbeatPhases = []string{
	"Reading source material...",
	"Cross-checking claims between sources...",
	"Drafting the synthesis...",
}

// heartbeat emits a MESSAGE event every interval while a synthesis call
// is in flight: first the phase strings, then a running elapsed line.
// Stop blocks until the goroutine has exited, so no events trail the
// synthesis result.
type heartbeat struct {
	stop chan struct{}
	done chan struct{}
}

func startHeartbeat(em emitter, parentID string) *heartbeat {
	h := &heartbeat{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(h.done)
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		start := time.Now()
		beat := 0
		for {
			select {
			case <-ticker.C:
				msg := fmt.Sprintf("Still synthesizing (%.0fs elapsed)", time.Since(start).Seconds())
				if beat < len(heartbeatPhases) {
					msg = heartbeatPhases[beat]
				}
				beat++
				em.emit(progress.Message, msg, progress.NewNodeID(), parentID)
			case <-h.stop:
				return
			}
		}
	}()
	return h
}

func (h *heartbeat) Stop() {
	close(h.stop)
	<-h.done
}
