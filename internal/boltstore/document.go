package boltstore

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/jacentio/roster/student"
)

// document is the stored msgpack form. Nil pointers are omitted; a non-nil
// address with no sub-fields encodes as an empty map.
type document struct {
	ID        string    `msgpack:"id"`
	Name      *string   `msgpack:"name,omitempty"`
	Age       *int      `msgpack:"age,omitempty"`
	Address   *address  `msgpack:"address,omitempty"`
	CreatedAt time.Time `msgpack:"created_at"`
	UpdatedAt time.Time `msgpack:"updated_at"`
}

type address struct {
	City    *string `msgpack:"city,omitempty"`
	Country *string `msgpack:"country,omitempty"`
}

func decode(data []byte) (*document, error) {
	var doc document
	if err := msgpack.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func fromRecord(r student.Record) *document {
	doc := &document{
		ID:   r.ID,
		Name: r.Name,
		Age:  r.Age,
	}
	if r.Address != nil {
		doc.Address = &address{
			City:    r.Address.City,
			Country: r.Address.Country,
		}
	}
	return doc
}

func (d *document) record() student.Record {
	r := student.Record{
		ID:   d.ID,
		Name: d.Name,
		Age:  d.Age,
	}
	if d.Address != nil {
		r.Address = &student.Address{
			City:    d.Address.City,
			Country: d.Address.Country,
		}
	}
	return r
}
