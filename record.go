package recordkv

import (
	"fmt"
	"maps"
)

// Attributes is the attribute set of a record.
type Attributes map[string]any

// Clone returns a shallow copy of a.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return Attributes{}
	}
	return maps.Clone(a)
}

// Target is either a *Record or a *Collection.
type Target interface {
	records() []*Record
}

// Record is a single attribute set identified by ID.
//
// A record without an ID gets one generated on its first save. The adapter
// also stores the id under the id attribute ("id" by default), and uses that
// attribute when ID is empty.
type Record struct {
	ID         string
	Attributes Attributes
}

// NewRecord creates a record without an id.
func NewRecord(attrs Attributes) *Record {
	return &Record{Attributes: attrs}
}

// Get returns the value of an attribute.
func (r *Record) Get(key string) any {
	return r.Attributes[key]
}

// Set sets an attribute.
func (r *Record) Set(key string, val any) {
	if r.Attributes == nil {
		r.Attributes = Attributes{}
	}
	r.Attributes[key] = val
}

func (r *Record) records() []*Record { return []*Record{r} }

// resolveID returns the record id, falling back to the id attribute.
func (r *Record) resolveID(idAttr string) string {
	if r.ID != "" {
		return r.ID
	}
	if s, ok := r.Attributes[idAttr].(string); ok {
		return s
	}
	return ""
}

// Collection is an ordered set of records in one namespace.
type Collection struct {
	Records []*Record
}

// NewCollection creates a collection of records.
func NewCollection(records ...*Record) *Collection {
	return &Collection{Records: records}
}

// Len returns the number of records.
func (c *Collection) Len() int { return len(c.Records) }

// Get returns the record with the given id, or nil.
func (c *Collection) Get(id string) *Record {
	for _, r := range c.Records {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (c *Collection) records() []*Record { return c.Records }

// Method is a sync method.
type Method string

const (
	MethodCreate Method = "create"
	MethodUpdate Method = "update"
	MethodRead   Method = "read"
	MethodDelete Method = "delete"
)

// ParseMethod parses a method name.
func ParseMethod(s string) (Method, error) {
	m := Method(s)
	if !m.valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMethod, s)
	}
	return m, nil
}

func (m Method) valid() bool {
	switch m {
	case MethodCreate, MethodUpdate, MethodRead, MethodDelete:
		return true
	default:
		return false
	}
}

// Response is passed to SyncOptions.Success.
type Response struct {
	// Target is the target passed to Sync, updated in place.
	Target Target
	// Records holds the attribute sets read by a read. For a collection
	// they follow the record index order.
	Records []Attributes
}

// SyncOptions carries the callbacks of one Sync call.
//
// Callbacks run on the adapter's event loop, except for precondition errors
// and no-op successes, which are reported before Sync returns. A callback may
// call Sync but must not block on another operation.
type SyncOptions struct {
	Success func(Response)
	Error   func(Target, error)
	// Request is called right before the first backend call with the keys
	// the operation touches.
	Request func(Target, []string)
}

func (o SyncOptions) success(resp Response) {
	if o.Success != nil {
		o.Success(resp)
	}
}

func (o SyncOptions) error(t Target, err error) {
	if o.Error != nil {
		o.Error(t, err)
	}
}

func (o SyncOptions) request(t Target, keys []string) {
	if o.Request != nil {
		o.Request(t, keys)
	}
}
