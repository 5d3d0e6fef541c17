package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidObjectID is returned when an object id string cannot be parsed.
var ErrInvalidObjectID = errors.New("invalid object id")

// Object spaces and types used by the ledger.
const (
	ProtocolSpace uint8 = 1

	AccountType    uint8 = 2
	AssetType      uint8 = 3
	LimitOrderType uint8 = 7
)

// ObjectID identifies a versioned ledger object.
type ObjectID struct {
	Space    uint8
	Type     uint8
	Instance uint64
}

// NewObjectID builds an ObjectID from its three components.
func NewObjectID(space, typ uint8, instance uint64) ObjectID {
	return ObjectID{Space: space, Type: typ, Instance: instance}
}

// AssetID returns the object id of the asset with the given instance number.
func AssetID(instance uint64) ObjectID {
	return ObjectID{Space: ProtocolSpace, Type: AssetType, Instance: instance}
}

// AccountID returns the object id of the account with the given instance number.
func AccountID(instance uint64) ObjectID {
	return ObjectID{Space: ProtocolSpace, Type: AccountType, Instance: instance}
}

// ParseObjectID parses "space.type.instance".
func ParseObjectID(s string) (ObjectID, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return ObjectID{}, fmt.Errorf("%w: %q", ErrInvalidObjectID, s)
	}
	space, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return ObjectID{}, fmt.Errorf("%w: %q: space: %v", ErrInvalidObjectID, s, err)
	}
	typ, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return ObjectID{}, fmt.Errorf("%w: %q: type: %v", ErrInvalidObjectID, s, err)
	}
	instance, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return ObjectID{}, fmt.Errorf("%w: %q: instance: %v", ErrInvalidObjectID, s, err)
	}
	return ObjectID{Space: uint8(space), Type: uint8(typ), Instance: instance}, nil
}

// MustParseObjectID is like ParseObjectID but panics on error. Intended for tests and constants.
func MustParseObjectID(s string) ObjectID {
	id, err := ParseObjectID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the dotted form.
func (id ObjectID) String() string {
	return strconv.FormatUint(uint64(id.Space), 10) + "." +
		strconv.FormatUint(uint64(id.Type), 10) + "." +
		strconv.FormatUint(id.Instance, 10)
}

// Compare orders ids by space, then type, then instance.
func (id ObjectID) Compare(other ObjectID) int {
	switch {
	case id.Space != other.Space:
		return cmpUint(uint64(id.Space), uint64(other.Space))
	case id.Type != other.Type:
		return cmpUint(uint64(id.Type), uint64(other.Type))
	default:
		return cmpUint(id.Instance, other.Instance)
	}
}

// Less reports whether id sorts before other.
func (id ObjectID) Less(other ObjectID) bool {
	return id.Compare(other) < 0
}

// MarshalText implements encoding.TextMarshaler so ids travel as "1.2.15" in JSON.
func (id ObjectID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ObjectID) UnmarshalText(text []byte) error {
	parsed, err := ParseObjectID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func cmpUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// AssetPair identifies a market. Orientation matters: {A,B} and {B,A} are distinct keys.
type AssetPair struct {
	A ObjectID `json:"a"`
	B ObjectID `json:"b"`
}

// NewAssetPair returns the market (a, b).
func NewAssetPair(a, b ObjectID) AssetPair {
	return AssetPair{A: a, B: b}
}

// String returns "a:b".
func (p AssetPair) String() string {
	return p.A.String() + ":" + p.B.String()
}

// Reverse returns the pair with its orientation flipped.
func (p AssetPair) Reverse() AssetPair {
	return AssetPair{A: p.B, B: p.A}
}
