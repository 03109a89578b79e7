package tiktok

import "sync"

// Accumulator collects videos in first-seen order, keyed by ID. A video seen
// again keeps the attributes from its first sighting. It is safe for
// concurrent use: responses are intercepted on the browser's event goroutine
// while the scroll loop reads the count.
type Accumulator struct {
	mu     sync.Mutex
	order  []string
	videos map[string]CollectedVideo
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{videos: make(map[string]CollectedVideo)}
}

// Add inserts the videos whose IDs are not yet present. It returns how many
// were new and the size after insertion.
func (a *Accumulator) Add(batch []CollectedVideo) (added, total int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, v := range batch {
		if v.ID == "" {
			continue
		}
		if _, ok := a.videos[v.ID]; ok {
			continue
		}
		a.videos[v.ID] = v
		a.order = append(a.order, v.ID)
		added++
	}
	return added, len(a.order)
}

// Len returns the number of distinct videos collected so far.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.order)
}

// Videos returns a snapshot in insertion order.
func (a *Accumulator) Videos() []CollectedVideo {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]CollectedVideo, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.videos[id])
	}
	return out
}
