package simulator

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// keyLocks serializes work on the same mission key within this process
// without holding a mutex per mission.
type keyLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *keyLocks) stripe(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &l.stripes[h.Sum32()%lockStripes]
}

// lock acquires the stripe of key and returns its unlock function.
func (l *keyLocks) lock(key string) func() {
	m := l.stripe(key)
	m.Lock()
	return m.Unlock
}

// lockAll acquires every stripe, always in the same order.
func (l *keyLocks) lockAll() func() {
	for i := range l.stripes {
		l.stripes[i].Lock()
	}
	return func() {
		for i := len(l.stripes) - 1; i >= 0; i-- {
			l.stripes[i].Unlock()
		}
	}
}
