package enums

import "fmt"

// DocumentType distinguishes the customer-facing documents built from a quote.
type DocumentType string

const (
	DocumentTypeEstimate DocumentType = "estimate"
	DocumentTypeInvoice  DocumentType = "invoice"
	DocumentTypeContract DocumentType = "contract"
)

var validDocumentTypes = []DocumentType{
	DocumentTypeEstimate,
	DocumentTypeInvoice,
	DocumentTypeContract,
}

// String implements fmt.Stringer.
func (d DocumentType) String() string {
	return string(d)
}

// IsValid reports whether the value is known.
func (d DocumentType) IsValid() bool {
	for _, candidate := range validDocumentTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDocumentType converts raw input into a DocumentType.
func ParseDocumentType(value string) (DocumentType, error) {
	for _, candidate := range validDocumentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid document type %q", value)
}
