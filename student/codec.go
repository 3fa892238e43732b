package student

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DefaultKeyAttribute holds the student id when a Codec names no other.
const DefaultKeyAttribute = "id"

// Attribute names of a stored student item.
const (
	attrName    = "name"
	attrAge     = "age"
	attrAddress = "address"
	attrCity    = "city"
	attrCountry = "country"
)

// Codec converts records to and from DynamoDB items whose id is stored
// under KeyAttribute.
type Codec struct {
	KeyAttribute string
}

func (c Codec) keyAttr() string {
	if c.KeyAttribute == "" {
		return DefaultKeyAttribute
	}
	return c.KeyAttribute
}

// ToItem converts a record using the default key attribute.
func ToItem(r Record) (map[string]types.AttributeValue, error) {
	return Codec{}.ToItem(r)
}

// FromItem converts an item using the default key attribute.
func FromItem(item map[string]types.AttributeValue) (Record, error) {
	return Codec{}.FromItem(item)
}

// ToItem converts a record into a DynamoDB item. Absent fields are omitted;
// an address with no sub-fields is stored as an empty map.
func (c Codec) ToItem(r Record) (map[string]types.AttributeValue, error) {
	item := make(map[string]types.AttributeValue)
	if r.ID != "" {
		item[c.keyAttr()] = &types.AttributeValueMemberS{Value: r.ID}
	}
	for _, f := range []Field{FieldName, FieldAge, FieldAddress} {
		av, err := encodeField(r, f)
		if err != nil {
			return nil, err
		}
		if av != nil {
			item[string(f)] = av
		}
	}
	return item, nil
}

// FromItem converts a stored DynamoDB item into a record. Managed
// bookkeeping attributes are ignored; NULL attributes read as absent.
func (c Codec) FromItem(item map[string]types.AttributeValue) (Record, error) {
	var r Record

	id, ok := item[c.keyAttr()].(*types.AttributeValueMemberS)
	if !ok {
		return Record{}, fmt.Errorf("decode student: missing %q attribute", c.keyAttr())
	}
	r.ID = id.Value

	name, err := decodeString(item, attrName)
	if err != nil {
		return Record{}, fmt.Errorf("decode student %s: %w", r.ID, err)
	}
	r.Name = name

	if av, ok := item[attrAge]; ok && !isNull(av) {
		var age int
		if err := attributevalue.Unmarshal(av, &age); err != nil {
			return Record{}, fmt.Errorf("decode student %s: attribute %q: %w", r.ID, attrAge, err)
		}
		r.Age = &age
	}

	if av, ok := item[attrAddress]; ok && !isNull(av) {
		m, ok := av.(*types.AttributeValueMemberM)
		if !ok {
			return Record{}, fmt.Errorf("decode student %s: attribute %q is not a map", r.ID, attrAddress)
		}
		addr := &Address{}
		if addr.City, err = decodeString(m.Value, attrCity); err != nil {
			return Record{}, fmt.Errorf("decode student %s: address: %w", r.ID, err)
		}
		if addr.Country, err = decodeString(m.Value, attrCountry); err != nil {
			return Record{}, fmt.Errorf("decode student %s: address: %w", r.ID, err)
		}
		r.Address = addr
	}

	return r, nil
}

// encodeField returns the attribute value for one top-level field of r,
// or nil when the field is absent.
func encodeField(r Record, f Field) (types.AttributeValue, error) {
	switch f {
	case FieldName:
		if r.Name == nil {
			return nil, nil
		}
		return &types.AttributeValueMemberS{Value: *r.Name}, nil

	case FieldAge:
		if r.Age == nil {
			return nil, nil
		}
		av, err := attributevalue.Marshal(*r.Age)
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", attrAge, err)
		}
		return av, nil

	case FieldAddress:
		if r.Address == nil {
			return nil, nil
		}
		m := make(map[string]types.AttributeValue, 2)
		if r.Address.City != nil {
			m[attrCity] = &types.AttributeValueMemberS{Value: *r.Address.City}
		}
		if r.Address.Country != nil {
			m[attrCountry] = &types.AttributeValueMemberS{Value: *r.Address.Country}
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	}
	return nil, fmt.Errorf("encode: unknown field %q", f)
}

func decodeString(item map[string]types.AttributeValue, attr string) (*string, error) {
	av, ok := item[attr]
	if !ok || isNull(av) {
		return nil, nil
	}
	s, ok := av.(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("attribute %q is not a string", attr)
	}
	v := s.Value
	return &v, nil
}

func isNull(av types.AttributeValue) bool {
	_, ok := av.(*types.AttributeValueMemberNULL)
	return ok
}
