package runtime

import "github.com/aretw0/arbor/pkg/domain"

// history is a fixed capacity ring of revealed units.
type history struct {
	buf   []domain.HistoryEntry
	start int
	size  int
}

func newHistory(capacity int) *history {
	return &history{buf: make([]domain.HistoryEntry, capacity)}
}

func (h *history) add(e domain.HistoryEntry) {
	if len(h.buf) == 0 {
		return
	}
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = e
		h.size++
		return
	}
	h.buf[h.start] = e
	h.start = (h.start + 1) % len(h.buf)
}

func (h *history) entries() []domain.HistoryEntry {
	if h.size == 0 {
		return nil
	}
	out := make([]domain.HistoryEntry, h.size)
	for i := range h.size {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}
