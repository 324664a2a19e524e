package plutus

import "fmt"

// Field returns the positional field i of the constructor, or an error when
// out of range. Schema decoders use it to walk nested datum records.
func (c Constr) Field(i int) (Data, error) {
	if i < 0 || i >= len(c.Fields) {
		return nil, fmt.Errorf("plutus: constructor %d has %d fields, want index %d",
			c.Alternative, len(c.Fields), i)
	}
	return c.Fields[i], nil
}

// MustConstr asserts that d is a constructor with the given alternative.
func MustConstr(d Data, alt uint64) (Constr, error) {
	c, ok := d.(Constr)
	if !ok {
		return Constr{}, ErrNotConstr
	}
	if c.Alternative != alt {
		return Constr{}, fmt.Errorf("plutus: constructor alternative %d, want %d", c.Alternative, alt)
	}
	return c, nil
}

// AsConstr asserts that d is a constructor of any alternative.
func AsConstr(d Data) (Constr, error) {
	c, ok := d.(Constr)
	if !ok {
		return Constr{}, ErrNotConstr
	}
	return c, nil
}

// AsBytes asserts that d is a byte string.
func AsBytes(d Data) ([]byte, error) {
	b, ok := d.(Bytes)
	if !ok {
		return nil, ErrNotBytes
	}
	return []byte(b), nil
}

// AsInt asserts that d is an integer and fits in 64 bits.
func AsInt(d Data) (int64, error) {
	n, ok := d.(Int)
	if !ok || n.Int == nil {
		return 0, ErrNotInt
	}
	if !n.IsInt64() {
		return 0, fmt.Errorf("plutus: integer %s overflows int64", n.String())
	}
	return n.Int64(), nil
}

// AsList asserts that d is an untagged list.
func AsList(d Data) (List, error) {
	l, ok := d.(List)
	if !ok {
		return nil, ErrNotList
	}
	return l, nil
}

// BytesField returns constructor field i as a byte string.
func (c Constr) BytesField(i int) ([]byte, error) {
	f, err := c.Field(i)
	if err != nil {
		return nil, err
	}
	return AsBytes(f)
}

// IntField returns constructor field i as an int64.
func (c Constr) IntField(i int) (int64, error) {
	f, err := c.Field(i)
	if err != nil {
		return 0, err
	}
	return AsInt(f)
}

// ConstrField returns constructor field i as a nested constructor.
func (c Constr) ConstrField(i int) (Constr, error) {
	f, err := c.Field(i)
	if err != nil {
		return Constr{}, err
	}
	return AsConstr(f)
}

// ListField returns constructor field i as a list.
func (c Constr) ListField(i int) (List, error) {
	f, err := c.Field(i)
	if err != nil {
		return nil, err
	}
	return AsList(f)
}

// Bool decodes the conventional datum boolean: constructor 0 is false,
// constructor 1 is true.
func Bool(d Data) (bool, error) {
	c, ok := d.(Constr)
	if !ok {
		return false, ErrNotConstr
	}
	switch c.Alternative {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("plutus: constructor %d is not a boolean", c.Alternative)
	}
}

// IsNone reports whether d is the conventional empty option (constructor 1
// with no fields).
func IsNone(d Data) bool {
	c, ok := d.(Constr)
	return ok && c.Alternative == 1 && len(c.Fields) == 0
}
