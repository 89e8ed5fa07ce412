package mixer

import "sync/atomic"

const (
	slotMask  = 0x3
	freshFlag = 0x4
)

type micSlot struct {
	frames []float32
	valid  int
}

// MicBuffer holds the most recent microphone block. It is a lock-free
// triple buffer: the capture side owns one slot, the render side owns
// another, and the third is exchanged atomically. The newest block always
// wins; blocks the render side never saw are dropped.
//
// Exactly one goroutine may write (Write, Reset) and one may read (Latest).
type MicBuffer struct {
	slots [3]micSlot

	// state holds the index of the shared slot and whether it carries a
	// block the reader has not picked up yet.
	state atomic.Uint32

	back  int // writer-owned
	front int // reader-owned
}

// NewMicBuffer allocates a buffer for blocks of up to blockSize mono frames.
func NewMicBuffer(blockSize int) *MicBuffer {
	m := &MicBuffer{back: 0, front: 2}
	for i := range m.slots {
		m.slots[i].frames = make([]float32, blockSize)
	}
	m.state.Store(1)
	return m
}

// Capacity is the largest block, in frames, the buffer keeps.
func (m *MicBuffer) Capacity() int { return len(m.slots[0].frames) }

// Write downmixes an interleaved block to mono and publishes it. Frames
// beyond Capacity are dropped. It returns the number of frames kept.
func (m *MicBuffer) Write(in []float32, channels int) int {
	slot := &m.slots[m.back]
	slot.valid = downmixInterleaved(slot.frames, in, channels)
	m.publish()
	return slot.valid
}

// Reset publishes an empty block so the reader stops repeating the last
// one. Only call it once the capture side has stopped writing.
func (m *MicBuffer) Reset() {
	m.slots[m.back].valid = 0
	m.publish()
}

func (m *MicBuffer) publish() {
	prev := m.state.Swap(uint32(m.back) | freshFlag)
	m.back = int(prev & slotMask)
}

// Latest returns the newest published block. The slice stays valid until
// the next call to Latest.
func (m *MicBuffer) Latest() []float32 {
	if m.state.Load()&freshFlag != 0 {
		prev := m.state.Swap(uint32(m.front))
		m.front = int(prev & slotMask)
	}
	slot := &m.slots[m.front]
	return slot.frames[:slot.valid]
}

// downmixInterleaved averages each frame of src into one sample of dst and
// returns the number of frames written, bounded by len(dst).
func downmixInterleaved(dst, src []float32, channels int) int {
	if channels <= 0 {
		return 0
	}
	frames := min(len(src)/channels, len(dst))

	if channels == 1 {
		return copy(dst, src[:frames])
	}

	inv := 1 / float32(channels)
	for f := range frames {
		var sum float32
		for _, s := range src[f*channels : (f+1)*channels] {
			sum += s
		}
		dst[f] = sum * inv
	}
	return frames
}
