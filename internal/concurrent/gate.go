package concurrent

import "sync/atomic"

// Gate admits one operation at a time and rejects the others instead of queueing them.
type Gate struct {
	busy int32
}

// Acquire takes the gate and returns false if it is already taken.
func (g *Gate) Acquire() bool {
	return atomic.CompareAndSwapInt32(&g.busy, 0, 1)
}

// Release frees the gate.
func (g *Gate) Release() {
	atomic.StoreInt32(&g.busy, 0)
}

// Busy reports if an operation holds the gate.
func (g *Gate) Busy() bool {
	return atomic.LoadInt32(&g.busy) == 1
}
