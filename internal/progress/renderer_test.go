package progress

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestRendererIndentsByDepth(t *testing.T) {
	bus := NewBus(10)
	var out bytes.Buffer
	r := NewRenderer(bus, &out)

	bus.Emit(NewEvent(WorkflowStart, "research workflow", "w1", ""))
	bus.Emit(NewEvent(StepStart, "web search", "s1", "w1"))
	bus.Emit(NewEvent(ToolStart, "brave fetch", "t1", "s1"))
	r.renderBatch()

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3: %q", len(lines), out.String())
	}
	if strings.HasPrefix(lines[0], " ") {
		t.Errorf("workflow line must not be indented: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "  ") {
		t.Errorf("step line must be indented: %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "    ") {
		t.Errorf("tool line must be indented twice: %q", lines[2])
	}
}

func TestRendererRunDrainsOnClose(t *testing.T) {
	bus := NewBus(10)
	var out bytes.Buffer
	r := NewRenderer(bus, &out)

	done := make(chan struct{})
	go func() {
		r.Run(context.Background())
		close(done)
	}()

	bus.Emit(NewEvent(Message, "hello", "", ""))
	bus.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("renderer did not stop after bus close")
	}
	if !strings.Contains(out.String(), "hello") {
		t.Errorf("output missing event: %q", out.String())
	}
}
