package calc

// StringTable interns every text value a worksheet stores, so ten thousand
// cells holding the same label cost one string plus ten thousand uint32s
// instead of ten thousand copies. worksheet.go calls Intern on every string
// write and RemoveReference on every overwrite/delete; GetString is how a
// read turns a cell's StringID back into text.
type StringTable struct {
	strings    map[string]uint32
	reverseMap map[uint32]string
	refCounts  map[uint32]int
	nextID     uint32
}

// NewStringTable creates a new string table.
func NewStringTable() *StringTable {
	return &StringTable{
		strings:    make(map[string]uint32),
		reverseMap: make(map[uint32]string),
		refCounts:  make(map[uint32]int),
		nextID:     1, // reserve 0 for "no string"
	}
}

// Intern adds s to the table, or bumps its reference count if it's already
// there, and returns its ID.
func (st *StringTable) Intern(s string) uint32 {
	if id, exists := st.strings[s]; exists {
		st.refCounts[id]++
		return id
	}

	id := st.nextID
	st.strings[s] = id
	st.reverseMap[id] = s
	st.refCounts[id] = 1
	st.nextID++

	return id
}

// GetString retrieves a string by its ID.
func (st *StringTable) GetString(id uint32) (string, bool) {
	s, exists := st.reverseMap[id]
	return s, exists
}

// RemoveReference decrements id's reference count, evicting the string once
// nothing holds it anymore. Returns true if the string was evicted.
func (st *StringTable) RemoveReference(id uint32) bool {
	s, exists := st.reverseMap[id]
	if !exists {
		return false
	}

	st.refCounts[id]--
	if st.refCounts[id] <= 0 {
		delete(st.strings, s)
		delete(st.reverseMap, id)
		delete(st.refCounts, id)
		return true
	}

	return false
}

// Count returns the number of unique strings currently interned.
func (st *StringTable) Count() int {
	return len(st.strings)
}
