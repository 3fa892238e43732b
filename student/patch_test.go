package student_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/jacentio/roster/student"
)

func ptr[T any](v T) *T { return &v }

func stored() student.Record {
	return student.Record{
		ID:   "A1",
		Name: ptr("Jo"),
		Age:  ptr(10),
		Address: &student.Address{
			City:    ptr("X"),
			Country: ptr("Y"),
		},
	}
}

func decodePatch(t *testing.T, body string) student.Patch {
	t.Helper()
	var p student.Patch
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return p
}

func TestOptional_Decode(t *testing.T) {
	p := decodePatch(t, `{"name": null, "age": 7}`)

	if !p.Name.Present || p.Name.Value != nil {
		t.Errorf("expected name present and null, got %+v", p.Name)
	}
	if !p.Age.Present || p.Age.Value == nil || *p.Age.Value != 7 {
		t.Errorf("expected age present with 7, got %+v", p.Age)
	}
	if p.Address.Present {
		t.Errorf("expected address absent, got %+v", p.Address)
	}
}

func TestOptional_DecodeNested(t *testing.T) {
	p := decodePatch(t, `{"address": {"city": "Z"}}`)

	if !p.Address.Present || p.Address.Value == nil {
		t.Fatalf("expected address present, got %+v", p.Address)
	}
	if !p.Address.Value.City.Present || *p.Address.Value.City.Value != "Z" {
		t.Errorf("expected city Z, got %+v", p.Address.Value.City)
	}
	if p.Address.Value.Country.Present {
		t.Errorf("expected country absent, got %+v", p.Address.Value.Country)
	}
}

func TestOptional_DecodeWrongType(t *testing.T) {
	var p student.Patch
	if err := json.Unmarshal([]byte(`{"age": "ten"}`), &p); err == nil {
		t.Error("expected error decoding string age")
	}
}

func TestPatchFields(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected []student.Field
	}{
		{"empty", `{}`, nil},
		{"name only", `{"name": "x"}`, []student.Field{student.FieldName}},
		{"null counts as present", `{"age": null}`, []student.Field{student.FieldAge}},
		{"all", `{"address": {}, "age": 1, "name": "x"}`, []student.Field{student.FieldName, student.FieldAge, student.FieldAddress}},
		{"id ignored", `{"id": "x"}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodePatch(t, tt.body).Fields()
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name     string
		existing student.Record
		body     string
		expected student.Record
	}{
		{
			name:     "partial address keeps other sub-field",
			existing: stored(),
			body:     `{"address": {"city": "Z"}}`,
			expected: student.Record{ID: "A1", Name: ptr("Jo"), Age: ptr(10), Address: &student.Address{City: ptr("Z"), Country: ptr("Y")}},
		},
		{
			name:     "scalar replace leaves the rest",
			existing: stored(),
			body:     `{"age": 11}`,
			expected: student.Record{ID: "A1", Name: ptr("Jo"), Age: ptr(11), Address: &student.Address{City: ptr("X"), Country: ptr("Y")}},
		},
		{
			name:     "empty patch is identity",
			existing: stored(),
			body:     `{}`,
			expected: stored(),
		},
		{
			name:     "explicit null clears scalar",
			existing: stored(),
			body:     `{"name": null}`,
			expected: student.Record{ID: "A1", Age: ptr(10), Address: &student.Address{City: ptr("X"), Country: ptr("Y")}},
		},
		{
			name:     "explicit null clears sub-field",
			existing: stored(),
			body:     `{"address": {"country": null}}`,
			expected: student.Record{ID: "A1", Name: ptr("Jo"), Age: ptr(10), Address: &student.Address{City: ptr("X")}},
		},
		{
			name:     "explicit null clears address",
			existing: stored(),
			body:     `{"address": null}`,
			expected: student.Record{ID: "A1", Name: ptr("Jo"), Age: ptr(10)},
		},
		{
			name:     "address onto record without one",
			existing: student.Record{ID: "A2", Name: ptr("Al")},
			body:     `{"address": {"country": "Y"}}`,
			expected: student.Record{ID: "A2", Name: ptr("Al"), Address: &student.Address{Country: ptr("Y")}},
		},
		{
			name:     "empty address onto record without one stays present",
			existing: student.Record{ID: "A2"},
			body:     `{"address": {}}`,
			expected: student.Record{ID: "A2", Address: &student.Address{}},
		},
		{
			name:     "empty address keeps stored sub-fields",
			existing: stored(),
			body:     `{"address": {}}`,
			expected: stored(),
		},
		{
			name:     "id in patch is ignored",
			existing: stored(),
			body:     `{"id": "B2"}`,
			expected: stored(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodePatch(t, tt.body).Apply(tt.existing)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("expected %s, got %s", dump(tt.expected), dump(got))
			}
		})
	}
}

func TestApply_DoesNotAliasInput(t *testing.T) {
	existing := stored()
	p := decodePatch(t, `{"address": {"city": "Z"}}`)

	got := p.Apply(existing)
	*got.Name = "changed"
	*got.Address.Country = "changed"

	if *existing.Name != "Jo" || *existing.Address.Country != "Y" {
		t.Errorf("Apply result aliases the input record: %s", dump(existing))
	}
	if *existing.Address.City != "X" {
		t.Errorf("Apply modified the input record: %s", dump(existing))
	}
}

func TestApply_ConstructorsMatchDecoding(t *testing.T) {
	built := student.Patch{
		Name: student.Null[string](),
		Address: student.Some(student.AddressPatch{
			City: student.Some("Z"),
		}),
	}
	decoded := decodePatch(t, `{"name": null, "address": {"city": "Z"}}`)

	if !reflect.DeepEqual(built.Apply(stored()), decoded.Apply(stored())) {
		t.Error("constructed and decoded patches disagree")
	}
}

func dump(r student.Record) string {
	b, _ := json.Marshal(r)
	return string(b)
}
