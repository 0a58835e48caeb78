package recordkv

import (
	"fmt"
	"slices"

	"github.com/hupe1980/recordkv/codec"
)

// RecordIndex is the ordered, duplicate-free list of record ids of a
// namespace. It is persisted under the namespace key.
type RecordIndex struct {
	ids []string
	set map[string]struct{}
}

// NewRecordIndex creates an index from ids, dropping duplicates.
func NewRecordIndex(ids ...string) *RecordIndex {
	idx := &RecordIndex{set: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		idx.Add(id)
	}
	return idx
}

// Add appends id unless present. It reports whether id was added.
func (x *RecordIndex) Add(id string) bool {
	if x.Contains(id) {
		return false
	}
	x.ids = append(x.ids, id)
	x.set[id] = struct{}{}
	return true
}

// Remove deletes ids preserving the order of the rest and returns how many
// were present.
func (x *RecordIndex) Remove(ids ...string) int {
	n := 0
	for _, id := range ids {
		if x.Contains(id) {
			delete(x.set, id)
			n++
		}
	}
	if n > 0 {
		x.ids = slices.DeleteFunc(x.ids, func(id string) bool {
			_, ok := x.set[id]
			return !ok
		})
	}
	return n
}

// Contains reports whether id is indexed.
func (x *RecordIndex) Contains(id string) bool {
	_, ok := x.set[id]
	return ok
}

// IDs returns a copy of the ids in index order.
func (x *RecordIndex) IDs() []string {
	return slices.Clone(x.ids)
}

// Len returns the number of ids.
func (x *RecordIndex) Len() int { return len(x.ids) }

func (x *RecordIndex) encode(c codec.Codec) ([]byte, error) {
	ids := x.ids
	if ids == nil {
		ids = []string{}
	}
	return c.Marshal(ids)
}

func decodeIndex(c codec.Codec, data []byte) (*RecordIndex, error) {
	var ids []string
	if err := c.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("recordkv: decode record index: %w", err)
	}
	return NewRecordIndex(ids...), nil
}
