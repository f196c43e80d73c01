package pricing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// RefKind discriminates the ToppingRef union.
type RefKind string

const (
	RefByID   RefKind = "id"
	RefByName RefKind = "name"
	RefInline RefKind = "inline"
)

// ToppingRef names a topping by product id, by product name, or inline with a
// price already attached.
type ToppingRef struct {
	Kind  RefKind
	ID    int64
	Name  string
	Price float64
}

// LookupKey addresses a resolved topping; numeric ids and their string form share a key.
type LookupKey struct {
	Kind  RefKind
	Value string
}

func ByID(id int64) ToppingRef { return ToppingRef{Kind: RefByID, ID: id} }

func ByName(name string) ToppingRef {
	return ToppingRef{Kind: RefByName, Name: strings.TrimSpace(name)}
}

func Inline(name string, price float64) ToppingRef {
	return ToppingRef{Kind: RefInline, Name: strings.TrimSpace(name), Price: price}
}

// Key returns the lookup key. Inline refs need no lookup and report false.
func (r ToppingRef) Key() (LookupKey, bool) {
	switch r.Kind {
	case RefByID:
		return LookupKey{Kind: RefByID, Value: strconv.FormatInt(r.ID, 10)}, true
	case RefByName:
		return LookupKey{Kind: RefByName, Value: r.Name}, true
	default:
		return LookupKey{}, false
	}
}

// Label is the text kept on the order line when the topping cannot be resolved.
func (r ToppingRef) Label() string {
	if r.Kind == RefByID {
		return strconv.FormatInt(r.ID, 10)
	}
	return r.Name
}

// UnmarshalJSON accepts 3, "3", "Pearls" or {"name":"Pearls","price":1.5}.
func (r *ToppingRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return errors.New("topping reference is empty")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		ref, err := ParseToppingRef(s)
		if err != nil {
			return err
		}
		*r = ref
		return nil
	case '{':
		var obj struct {
			ID    *json.Number `json:"id"`
			Name  string       `json:"name"`
			Price *json.Number `json:"price"`
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&obj); err != nil {
			return err
		}
		name := strings.TrimSpace(obj.Name)
		switch {
		case name != "" && obj.Price != nil:
			price, err := obj.Price.Float64()
			if err != nil {
				return fmt.Errorf("topping %q has invalid price: %w", name, err)
			}
			*r = Inline(name, price)
		case obj.ID != nil:
			id, err := obj.ID.Int64()
			if err != nil {
				return fmt.Errorf("invalid topping id %q", obj.ID.String())
			}
			*r = ByID(id)
		case name != "":
			*r = ByName(name)
		default:
			return errors.New("topping object needs an id or a name")
		}
		return nil
	default:
		id, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid topping id %s", data)
		}
		*r = ByID(id)
		return nil
	}
}

// MarshalJSON writes the compact form UnmarshalJSON accepts.
func (r ToppingRef) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case RefByID:
		return json.Marshal(r.ID)
	case RefByName:
		return json.Marshal(r.Name)
	default:
		return json.Marshal(struct {
			Name  string  `json:"name"`
			Price float64 `json:"price"`
		}{r.Name, r.Price})
	}
}

// ParseToppingRef classifies a raw string: all digits is an id, anything else a name.
func ParseToppingRef(raw string) (ToppingRef, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ToppingRef{}, errors.New("topping reference is empty")
	}
	if isDigits(s) {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return ToppingRef{}, fmt.Errorf("invalid topping id %q", s)
		}
		return ByID(id), nil
	}
	return ByName(s), nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
