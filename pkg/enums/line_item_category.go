package enums

import "fmt"

// LineItemCategory buckets invoice line items by what they bill for.
type LineItemCategory string

const (
	LineItemCategoryMeal      LineItemCategory = "meal"
	LineItemCategoryAppetizer LineItemCategory = "appetizer"
	LineItemCategorySide      LineItemCategory = "side"
	LineItemCategoryDessert   LineItemCategory = "dessert"
	LineItemCategoryDrink     LineItemCategory = "drink"
	LineItemCategoryService   LineItemCategory = "service"
	LineItemCategoryEquipment LineItemCategory = "equipment"
	LineItemCategoryDietary   LineItemCategory = "dietary"
	LineItemCategoryCustom    LineItemCategory = "custom"
)

var validLineItemCategories = []LineItemCategory{
	LineItemCategoryMeal,
	LineItemCategoryAppetizer,
	LineItemCategorySide,
	LineItemCategoryDessert,
	LineItemCategoryDrink,
	LineItemCategoryService,
	LineItemCategoryEquipment,
	LineItemCategoryDietary,
	LineItemCategoryCustom,
}

// String implements fmt.Stringer.
func (l LineItemCategory) String() string {
	return string(l)
}

// IsValid reports whether the value is known.
func (l LineItemCategory) IsValid() bool {
	for _, candidate := range validLineItemCategories {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseLineItemCategory converts raw input into a LineItemCategory.
func ParseLineItemCategory(value string) (LineItemCategory, error) {
	for _, candidate := range validLineItemCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid line item category %q", value)
}
