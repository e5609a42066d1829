package sim

import "container/heap"

// CommandQueue orders commands by frame, keeping enqueue order among
// commands of the same frame. Commands for frames already passed run at
// the next drain.
type CommandQueue struct {
	items commandHeap
	seq   uint64
}

type queuedCommand struct {
	cmd Command
	seq uint64
}

type commandHeap []queuedCommand

func (h commandHeap) Len() int { return len(h) }

func (h commandHeap) Less(i, j int) bool {
	if h[i].cmd.Frame != h[j].cmd.Frame {
		return h[i].cmd.Frame < h[j].cmd.Frame
	}
	return h[i].seq < h[j].seq
}

func (h commandHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *commandHeap) Push(x any) { *h = append(*h, x.(queuedCommand)) }

func (h *commandHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func NewCommandQueue() *CommandQueue {
	return &CommandQueue{}
}

func (q *CommandQueue) Push(cmd Command) {
	q.seq++
	heap.Push(&q.items, queuedCommand{cmd: cmd, seq: q.seq})
}

func (q *CommandQueue) Len() int { return q.items.Len() }

// PopDue removes and returns every command with a frame at or before
// frame, in execution order.
func (q *CommandQueue) PopDue(frame int) []Command {
	var due []Command
	for q.items.Len() > 0 && q.items[0].cmd.Frame <= frame {
		due = append(due, heap.Pop(&q.items).(queuedCommand).cmd)
	}
	return due
}

// Pending copies the queued commands in execution order.
func (q *CommandQueue) Pending() []Command {
	sorted := append(commandHeap(nil), q.items...)
	out := make([]Command, 0, len(sorted))
	for sorted.Len() > 0 {
		out = append(out, heap.Pop(&sorted).(queuedCommand).cmd)
	}
	return out
}

func (q *CommandQueue) Clear() {
	q.items = nil
}
