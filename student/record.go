package student

// Record is the public representation of a student.
//
// Absent scalar fields encode as null. When Address is present both of its
// keys are always emitted.
type Record struct {
	ID      string   `json:"id"`
	Name    *string  `json:"name"`
	Age     *int     `json:"age"`
	Address *Address `json:"address"`
}

// Address is the nested address object of a Record.
type Address struct {
	City    *string `json:"city"`
	Country *string `json:"country"`
}

// Field names a top-level, client-writable field of a Record.
type Field string

const (
	FieldName    Field = "name"
	FieldAge     Field = "age"
	FieldAddress Field = "address"
)

func (r Record) clone() Record {
	out := Record{
		ID:   r.ID,
		Name: clonePtr(r.Name),
		Age:  clonePtr(r.Age),
	}
	if r.Address != nil {
		out.Address = &Address{
			City:    clonePtr(r.Address.City),
			Country: clonePtr(r.Address.Country),
		}
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
