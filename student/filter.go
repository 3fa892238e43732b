package student

import (
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/roster/store"
)

// Filter constrains List. The zero value matches every student.
type Filter struct {
	// Country, when non-empty, must equal address.country exactly.
	Country string

	// MinAge, when set, is an inclusive lower bound on age.
	MinAge *int
}

// Match reports whether r satisfies the filter. Records lacking a
// constrained field never match.
func (f Filter) Match(r Record) bool {
	if f.Country != "" {
		if r.Address == nil || r.Address.Country == nil || *r.Address.Country != f.Country {
			return false
		}
	}
	if f.MinAge != nil {
		if r.Age == nil || *r.Age < *f.MinAge {
			return false
		}
	}
	return true
}

// scanInput builds the equivalent DynamoDB filter expression.
func (f Filter) scanInput() store.ScanInput {
	var clauses []string
	names := map[string]string{}
	values := map[string]types.AttributeValue{}

	if f.Country != "" {
		names["#address"] = attrAddress
		names["#country"] = attrCountry
		values[":country"] = &types.AttributeValueMemberS{Value: f.Country}
		clauses = append(clauses, "#address.#country = :country")
	}
	if f.MinAge != nil {
		names["#age"] = attrAge
		values[":min_age"] = &types.AttributeValueMemberN{Value: strconv.Itoa(*f.MinAge)}
		clauses = append(clauses, "#age >= :min_age")
	}

	input := store.ScanInput{}
	if len(clauses) > 0 {
		input.FilterExpression = strings.Join(clauses, " AND ")
		input.ExpressionAttributeNames = names
		input.ExpressionAttributeValues = values
	}
	return input
}
