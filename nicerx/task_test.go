package nicerx

import (
	"context"
	"io"
	"testing"

	"github.com/chzchzchz/sdrscan/radio"
)

type countingTask struct {
	name  string
	band  radio.FreqBand
	steps int
	err   error
}

func (c *countingTask) Name() string              { return c.name }
func (c *countingTask) Band() radio.FreqBand       { return c.band }
func (c *countingTask) Step(ctx context.Context) error {
	c.steps++
	return c.err
}

func TestTaskQueueAddAssignsDistinctIds(t *testing.T) {
	tq := NewTaskQueue()
	a := tq.Add(&countingTask{name: "a"})
	b := tq.Add(&countingTask{name: "b"})
	if a == b {
		t.Fatalf("expected distinct task ids, got %v twice", a)
	}
}

func TestTaskQueueRunsHighestPriorityTask(t *testing.T) {
	tq := NewTaskQueue()
	low := &countingTask{name: "low", err: io.EOF}
	high := &countingTask{name: "high", err: io.EOF}
	lowId := tq.Add(low)
	highId := tq.Add(high)
	tq.Prioritize(lowId, 1)
	tq.Prioritize(highId, 10)

	if err := tq.Run(context.Background()); err != io.EOF {
		t.Fatalf("Run err = %v, want io.EOF (Run stops after a task reports EOF)", err)
	}
	if high.steps != 1 {
		t.Fatalf("high-priority task steps = %d, want 1", high.steps)
	}
	if low.steps != 0 {
		t.Fatalf("low-priority task steps = %d, want 0 (should not have run before the stop)", low.steps)
	}
}

func TestTaskQueueStopRemovesTaskFromRotation(t *testing.T) {
	tq := NewTaskQueue()
	task := &countingTask{name: "once"}
	id := tq.Add(task)
	tq.Prioritize(id, 10)

	tq.Stop(id)
	if _, ok := tq.AllTasks[id]; ok {
		t.Fatal("expected Stop to remove the task from AllTasks")
	}
}

func TestTaskQueuePauseResume(t *testing.T) {
	tq := NewTaskQueue()
	task := &countingTask{name: "pausable"}
	id := tq.Add(task)

	tq.Pause(id)
	if _, ok := tq.Running[id]; ok {
		t.Fatal("expected Pause to remove the task from Running")
	}
	if _, ok := tq.Paused[id]; !ok {
		t.Fatal("expected Pause to add the task to Paused")
	}

	tq.Resume(id)
	if _, ok := tq.Running[id]; !ok {
		t.Fatal("expected Resume to restore the task to Running")
	}
}

func TestTaskQueueFreqsGroupsByName(t *testing.T) {
	tq := NewTaskQueue()
	band := radio.FreqBand{Center: 146.52, Width: 0.0125}
	tq.Add(&countingTask{name: "scanner", band: band})

	freqs := tq.Freqs("scanner")
	if len(freqs) != 1 {
		t.Fatalf("len(Freqs) = %d, want 1", len(freqs))
	}
	if got, ok := freqs[band.Center]; !ok || got != band {
		t.Fatalf("Freqs[%v] = %+v, want %+v", band.Center, got, band)
	}
}

func TestTaskQueueStopsRunOnTaskError(t *testing.T) {
	tq := NewTaskQueue()
	failing := &countingTask{name: "failing", err: context.Canceled}
	id := tq.Add(failing)
	tq.Prioritize(id, 10)

	if err := tq.Run(context.Background()); err != context.Canceled {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
}
