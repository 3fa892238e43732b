package student

import (
	"bytes"
	"encoding/json"
)

// Optional tracks whether a JSON field was supplied at all, and if so
// whether it was null.
//
//	absent        Optional{}
//	"k": null     Optional{Present: true}
//	"k": v        Optional{Present: true, Value: &v}
type Optional[T any] struct {
	Present bool
	Value   *T
}

// Some returns a present, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Present: true, Value: &v}
}

// Null returns a present Optional holding an explicit null.
func Null[T any]() Optional[T] {
	return Optional[T]{Present: true}
}

// UnmarshalJSON marks the field present and decodes a non-null value.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// Patch is a partial record as supplied by a client for create or update.
// Any "id" in the input is ignored.
type Patch struct {
	Name    Optional[string]       `json:"name"`
	Age     Optional[int]          `json:"age" validate:"omitempty,gte=0"`
	Address Optional[AddressPatch] `json:"address"`
}

// AddressPatch is the partial form of Address.
type AddressPatch struct {
	City    Optional[string] `json:"city"`
	Country Optional[string] `json:"country"`
}

// Fields returns the top-level fields present in the patch.
func (p Patch) Fields() []Field {
	var fields []Field
	if p.Name.Present {
		fields = append(fields, FieldName)
	}
	if p.Age.Present {
		fields = append(fields, FieldAge)
	}
	if p.Address.Present {
		fields = append(fields, FieldAddress)
	}
	return fields
}

// Apply merges the patch onto r and returns the result; r is not modified.
//
// Present scalar fields replace the stored value (null clears it). A present
// address is merged one level deep: each present sub-field overwrites, absent
// sub-fields keep their stored value, and a missing stored address counts as
// empty. An explicit null address clears it.
func (p Patch) Apply(r Record) Record {
	out := r.clone()

	if p.Name.Present {
		out.Name = clonePtr(p.Name.Value)
	}
	if p.Age.Present {
		out.Age = clonePtr(p.Age.Value)
	}
	if p.Address.Present {
		out.Address = mergeAddress(out.Address, p.Address.Value)
	}

	return out
}

func mergeAddress(existing *Address, patch *AddressPatch) *Address {
	if patch == nil {
		return nil
	}

	merged := &Address{}
	if existing != nil {
		merged.City = existing.City
		merged.Country = existing.Country
	}
	if patch.City.Present {
		merged.City = clonePtr(patch.City.Value)
	}
	if patch.Country.Present {
		merged.Country = clonePtr(patch.Country.Value)
	}
	return merged
}
