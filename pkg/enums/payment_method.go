package enums

import "fmt"

// PaymentMethod records how money arrived.
type PaymentMethod string

const (
	PaymentMethodCard  PaymentMethod = "card"
	PaymentMethodACH   PaymentMethod = "ach"
	PaymentMethodCheck PaymentMethod = "check"
	PaymentMethodCash  PaymentMethod = "cash"
	PaymentMethodOther PaymentMethod = "other"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCard,
	PaymentMethodACH,
	PaymentMethodCheck,
	PaymentMethodCash,
	PaymentMethodOther,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
