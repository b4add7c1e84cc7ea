package pnginfo

// Record is an ordered mapping of textual annotation keys to values.
//
// Keys keep the order in which they were first seen. Setting an existing key
// replaces its value without moving it, so a key repeated in the image
// resolves to the last value written.
//
// The zero value is not usable; create records with NewRecord.
type Record struct {
	keys   []string
	values map[string]string
}

// NewRecord returns an empty Record.
func NewRecord() *Record {
	return &Record{values: make(map[string]string)}
}

// Set stores value under key.
func (r *Record) Set(key, value string) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (string, bool) {
	if r == nil {
		return "", false
	}
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the keys in encounter order.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of distinct keys.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Map returns a copy of the record as a plain map.
func (r *Record) Map() map[string]string {
	out := make(map[string]string, r.Len())
	if r == nil {
		return out
	}
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Equal reports whether both records hold the same keys, in the same order,
// with the same values.
func (r *Record) Equal(other *Record) bool {
	if r.Len() != other.Len() {
		return false
	}
	for i, k := range r.Keys() {
		if other.keys[i] != k || other.values[k] != r.values[k] {
			return false
		}
	}
	return true
}
