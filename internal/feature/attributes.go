package feature

// Attributes is an insertion-ordered mapping from attribute name to Value.
// The zero value is ready to use.
type Attributes struct {
	keys []string
	vals map[string]Value
}

// NewAttributes returns an empty attribute set.
func NewAttributes() *Attributes {
	return &Attributes{vals: make(map[string]Value)}
}

// Len returns the number of attributes.
func (a *Attributes) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

// Get returns the value stored under name.
func (a *Attributes) Get(name string) (Value, bool) {
	if a == nil {
		return Value{}, false
	}
	v, ok := a.vals[name]
	return v, ok
}

// Has reports whether name is set.
func (a *Attributes) Has(name string) bool {
	_, ok := a.Get(name)
	return ok
}

// Set stores v under name. A new name is appended to the key order;
// an existing one keeps its position.
func (a *Attributes) Set(name string, v Value) {
	if a.vals == nil {
		a.vals = make(map[string]Value)
	}
	if _, ok := a.vals[name]; !ok {
		a.keys = append(a.keys, name)
	}
	a.vals[name] = v
}

// Delete removes name.
func (a *Attributes) Delete(name string) {
	if a == nil {
		return
	}
	if _, ok := a.vals[name]; !ok {
		return
	}
	delete(a.vals, name)
	for i, k := range a.keys {
		if k == name {
			a.keys = append(a.keys[:i], a.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the attribute names in insertion order.
func (a *Attributes) Keys() []string {
	if a == nil {
		return nil
	}
	out := make([]string, len(a.keys))
	copy(out, a.keys)
	return out
}

// Range calls fn for each attribute in insertion order until fn returns false.
func (a *Attributes) Range(fn func(name string, v Value) bool) {
	if a == nil {
		return
	}
	for _, k := range a.keys {
		if !fn(k, a.vals[k]) {
			return
		}
	}
}

// Clone returns a copy of a. Point sequences are shared.
func (a *Attributes) Clone() *Attributes {
	c := NewAttributes()
	a.Range(func(name string, v Value) bool {
		c.Set(name, v)
		return true
	})
	return c
}

// Equal compares two attribute sets ignoring key order.
func (a *Attributes) Equal(o *Attributes) bool {
	if a.Len() != o.Len() {
		return false
	}
	equal := true
	a.Range(func(name string, v Value) bool {
		ov, ok := o.Get(name)
		if !ok || !v.Equal(ov) {
			equal = false
		}
		return equal
	})
	return equal
}
