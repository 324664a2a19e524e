package plutus

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// Plutus datum values are CBOR with constructor alternatives carried in
// semantic tags: tag 121+i for constructors 0..6, tag 1280+(i-7) for 7..127,
// and tag 102 wrapping [i, fields] beyond that.
const (
	tagConstrBase    = 121
	tagConstrExtBase = 1280
	tagConstrGeneral = 102
)

var (
	ErrNotConstr = errors.New("plutus: value is not a constructor")
	ErrNotBytes  = errors.New("plutus: value is not a byte string")
	ErrNotInt    = errors.New("plutus: value is not an integer")
	ErrNotList   = errors.New("plutus: value is not a list")
)

// Data is a decoded Plutus datum node: Constr, Bytes, Int, List or Map.
type Data interface {
	isData()
}

// Constr is a tagged constructor alternative with positional fields.
type Constr struct {
	Alternative uint64
	Fields      []Data
}

// Bytes is a raw byte string field.
type Bytes []byte

// Int is an arbitrary-precision integer field.
type Int struct {
	*big.Int
}

// List is a plain (untagged) list of datum values.
type List []Data

// Map is an ordered list of key/value datum pairs.
type Map []Pair

// Pair is one entry of a datum map.
type Pair struct {
	Key   Data
	Value Data
}

func (Constr) isData() {}
func (Bytes) isData()  {}
func (Int) isData()    {}
func (List) isData()   {}
func (Map) isData()    {}

// NewInt wraps an int64 as a datum integer.
func NewInt(v int64) Int { return Int{big.NewInt(v)} }

// NewConstr builds a constructor node.
func NewConstr(alt uint64, fields ...Data) Constr {
	return Constr{Alternative: alt, Fields: fields}
}

var decMode cbor.DecMode

func init() {
	dm, err := cbor.DecOptions{
		MaxNestedLevels:  64,
		BigIntDec:        cbor.BigIntDecodeValue,
		MapKeyByteString: cbor.MapKeyByteStringAllowed,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	decMode = dm
}

// Unmarshal decodes a CBOR-encoded Plutus datum into a Data tree.
func Unmarshal(raw []byte) (Data, error) {
	var v any
	if err := decMode.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("plutus: decode cbor: %w", err)
	}
	return fromCBOR(v)
}

func fromCBOR(v any) (Data, error) {
	switch x := v.(type) {
	case cbor.Tag:
		return fromTag(x)
	case []byte:
		return Bytes(x), nil
	case cbor.ByteString:
		// Byte-string map keys surface as this hashable wrapper.
		return Bytes(x.Bytes()), nil
	case string:
		return Bytes([]byte(x)), nil
	case uint64:
		return Int{new(big.Int).SetUint64(x)}, nil
	case int64:
		return NewInt(x), nil
	case big.Int:
		return Int{new(big.Int).Set(&x)}, nil
	case []any:
		out := make(List, 0, len(x))
		for _, item := range x {
			d, err := fromCBOR(item)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
		return out, nil
	case map[any]any:
		out := make(Map, 0, len(x))
		for k, val := range x {
			kd, err := fromCBOR(k)
			if err != nil {
				return nil, err
			}
			vd, err := fromCBOR(val)
			if err != nil {
				return nil, err
			}
			out = append(out, Pair{Key: kd, Value: vd})
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("plutus: null is not a datum value")
	default:
		return nil, fmt.Errorf("plutus: unsupported cbor value %T", v)
	}
}

func fromTag(t cbor.Tag) (Data, error) {
	switch {
	case t.Number >= tagConstrBase && t.Number < tagConstrBase+7:
		fields, err := fieldList(t.Content)
		if err != nil {
			return nil, err
		}
		return Constr{Alternative: t.Number - tagConstrBase, Fields: fields}, nil
	case t.Number >= tagConstrExtBase && t.Number < tagConstrExtBase+121:
		fields, err := fieldList(t.Content)
		if err != nil {
			return nil, err
		}
		return Constr{Alternative: t.Number - tagConstrExtBase + 7, Fields: fields}, nil
	case t.Number == tagConstrGeneral:
		parts, ok := t.Content.([]any)
		if !ok || len(parts) != 2 {
			return nil, fmt.Errorf("plutus: malformed general constructor")
		}
		alt, ok := parts[0].(uint64)
		if !ok {
			return nil, fmt.Errorf("plutus: general constructor alternative is not an unsigned int")
		}
		fields, err := fieldList(parts[1])
		if err != nil {
			return nil, err
		}
		return Constr{Alternative: alt, Fields: fields}, nil
	case t.Number == 2 || t.Number == 3:
		// Bignum tags already folded into big.Int by the decoder when
		// BigIntDecodeValue is set; reaching here means raw content.
		d, err := fromCBOR(t.Content)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("plutus: unsupported cbor tag %d", t.Number)
	}
}

func fieldList(content any) ([]Data, error) {
	items, ok := content.([]any)
	if !ok {
		return nil, fmt.Errorf("plutus: constructor fields are not a list")
	}
	fields := make([]Data, 0, len(items))
	for _, item := range items {
		d, err := fromCBOR(item)
		if err != nil {
			return nil, err
		}
		fields = append(fields, d)
	}
	return fields, nil
}

// Marshal encodes a Data tree back to CBOR.
func Marshal(d Data) ([]byte, error) {
	v, err := toCBOR(d)
	if err != nil {
		return nil, err
	}
	raw, err := cbor.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("plutus: encode cbor: %w", err)
	}
	return raw, nil
}

func toCBOR(d Data) (any, error) {
	switch x := d.(type) {
	case Constr:
		fields := make([]any, 0, len(x.Fields))
		for _, f := range x.Fields {
			v, err := toCBOR(f)
			if err != nil {
				return nil, err
			}
			fields = append(fields, v)
		}
		switch {
		case x.Alternative < 7:
			return cbor.Tag{Number: tagConstrBase + x.Alternative, Content: fields}, nil
		case x.Alternative < 128:
			return cbor.Tag{Number: tagConstrExtBase + x.Alternative - 7, Content: fields}, nil
		default:
			return cbor.Tag{Number: tagConstrGeneral, Content: []any{x.Alternative, fields}}, nil
		}
	case Bytes:
		if x == nil {
			// A nil slice would encode as CBOR null, which is not a
			// valid datum value; emit an empty byte string instead.
			return []byte{}, nil
		}
		return []byte(x), nil
	case Int:
		if x.Int == nil {
			return nil, fmt.Errorf("plutus: nil integer")
		}
		if x.IsInt64() {
			return x.Int64(), nil
		}
		return x.Int, nil
	case List:
		items := make([]any, 0, len(x))
		for _, item := range x {
			v, err := toCBOR(item)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	case Map:
		// Encoded by hand to keep entry order; byte-string keys are not
		// hashable as Go map keys anyway.
		buf := appendMapHeader(nil, uint64(len(x)))
		for _, p := range x {
			for _, d := range []Data{p.Key, p.Value} {
				v, err := toCBOR(d)
				if err != nil {
					return nil, err
				}
				enc, err := cbor.Marshal(v)
				if err != nil {
					return nil, fmt.Errorf("plutus: encode map entry: %w", err)
				}
				buf = append(buf, enc...)
			}
		}
		return cbor.RawMessage(buf), nil
	default:
		return nil, fmt.Errorf("plutus: unsupported data node %T", d)
	}
}

// appendMapHeader writes the CBOR map head (major type 5) for n entries.
func appendMapHeader(buf []byte, n uint64) []byte {
	const major = 0xa0
	switch {
	case n < 24:
		return append(buf, major|byte(n))
	case n <= 0xff:
		return append(buf, major|24, byte(n))
	case n <= 0xffff:
		return append(buf, major|25, byte(n>>8), byte(n))
	default:
		return append(buf, major|26, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}
}
