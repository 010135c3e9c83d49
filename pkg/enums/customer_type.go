package enums

import "fmt"

// CustomerType classifies who is paying for an event, which drives the
// payment schedule shape.
type CustomerType string

const (
	CustomerTypePerson       CustomerType = "person"
	CustomerTypeOrganization CustomerType = "organization"
	CustomerTypeGovernment   CustomerType = "government"
)

var validCustomerTypes = []CustomerType{
	CustomerTypePerson,
	CustomerTypeOrganization,
	CustomerTypeGovernment,
}

// String implements fmt.Stringer.
func (c CustomerType) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c CustomerType) IsValid() bool {
	for _, candidate := range validCustomerTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCustomerType converts raw input into a CustomerType.
func ParseCustomerType(value string) (CustomerType, error) {
	for _, candidate := range validCustomerTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid customer type %q", value)
}
