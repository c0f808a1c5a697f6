package hardware

import (
	"sync"

	"github.com/dougsko/microfm/pkg/controller"
)

// maxQueuedPresses bounds the remote press queue.
const maxQueuedPresses = 32

// VirtualButtons turns remote press requests into button samples. Each press
// is held for one sample and released for the next, so the controller sees
// exactly one rising edge per press even when the same button is queued
// twice.
type VirtualButtons struct {
	mu      sync.Mutex
	queue   []controller.Buttons
	holding bool
}

// NewVirtualButtons creates an empty queue
func NewVirtualButtons() *VirtualButtons {
	return &VirtualButtons{}
}

// Press queues b. It reports false when the queue is full.
func (v *VirtualButtons) Press(b controller.Buttons) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(v.queue) >= maxQueuedPresses {
		return false
	}
	v.queue = append(v.queue, b)
	return true
}

// Next returns the virtual part of the next sample.
func (v *VirtualButtons) Next() controller.Buttons {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.holding || len(v.queue) == 0 {
		v.holding = false
		return 0
	}
	b := v.queue[0]
	v.queue = v.queue[1:]
	v.holding = true
	return b
}

// Pending returns the number of queued presses.
func (v *VirtualButtons) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.queue)
}
