package pool

// ID encodes a 32-bit slot index in the lower bits and a 32-bit generation
// in the upper bits. Generation increments on despawn to invalidate stale refs.
type ID uint64

func NewID(index uint32, generation uint32) ID {
	return ID(uint64(generation)<<32 | uint64(index))
}

func (id ID) Index() uint32      { return uint32(id) }
func (id ID) Generation() uint32 { return uint32(id >> 32) }

// slots manages slot allocation with generational indices and a free list.
type slots struct {
	generations []uint32
	freeList    []uint32
	nextIndex   uint32
}

func newSlots(capacity int) *slots {
	if capacity < 0 {
		capacity = 0
	}
	return &slots{
		generations: make([]uint32, 0, capacity),
		freeList:    make([]uint32, 0, capacity/4),
	}
}

func (s *slots) create() ID {
	if len(s.freeList) > 0 {
		idx := s.freeList[len(s.freeList)-1]
		s.freeList = s.freeList[:len(s.freeList)-1]
		return NewID(idx, s.generations[idx])
	}
	idx := s.nextIndex
	s.nextIndex++
	if int(idx) >= len(s.generations) {
		s.generations = append(s.generations, 0)
	}
	return NewID(idx, s.generations[idx])
}

func (s *slots) alive(id ID) bool {
	idx := id.Index()
	if idx >= s.nextIndex {
		return false
	}
	return s.generations[idx] == id.Generation()
}

func (s *slots) destroy(id ID) bool {
	if !s.alive(id) {
		return false // already destroyed (stale reference)
	}
	idx := id.Index()
	s.generations[idx]++
	s.freeList = append(s.freeList, idx)
	return true
}
