package progress

import (
	"context"
	"fmt"
	"io"
	"time"
)

const renderTick = 100 * time.Millisecond

// Renderer is the single bus consumer: it drains one batch per tick and
// prints each event as an indented tree line.
type Renderer struct {
	bus  *Bus
	out  io.Writer
	tree *Tree
}

func NewRenderer(bus *Bus, out io.Writer) *Renderer {
	return &Renderer{bus: bus, out: out, tree: NewTree()}
}

// Run renders until the bus closes or ctx is cancelled, then drains
// whatever is left so no event is lost on shutdown.
func (r *Renderer) Run(ctx context.Context) {
	ticker := time.NewTicker(renderTick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.renderBatch()
		case <-r.bus.Done():
			r.drainAll()
			return
		case <-ctx.Done():
			r.drainAll()
			return
		}
	}
}

func (r *Renderer) renderBatch() {
	for _, ev := range r.bus.Drain(MaxDrainBatch) {
		_, depth := r.tree.Add(ev)
		r.print(ev, depth)
	}
}

func (r *Renderer) drainAll() {
	for {
		batch := r.bus.Drain(MaxDrainBatch)
		if len(batch) == 0 {
			return
		}
		for _, ev := range batch {
			_, depth := r.tree.Add(ev)
			r.print(ev, depth)
		}
	}
}

func (r *Renderer) print(ev Event, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	fmt.Fprintf(r.out, "%s%s %s\n", indent, marker(ev.Type), ev.Message)
}

func marker(t EventType) string {
	switch t {
	case WorkflowStart:
		return "==>"
	case WorkflowComplete:
		return "<=="
	case StepStart:
		return "-->"
	case StepComplete:
		return "ok:"
	case StepError, ToolError:
		return "err:"
	case ToolStart:
		return "  *"
	case ToolComplete:
		return "  +"
	default:
		return "  ."
	}
}
