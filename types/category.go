package types

import "fmt"

// Category is one of the closed set of campaign categories.
type Category string

const (
	CategoryEducation            Category = "Education"
	CategoryHealthcare           Category = "Healthcare"
	CategoryEnvironment          Category = "Environment"
	CategoryPovertyRelief        Category = "Poverty Relief"
	CategoryDisasterRelief       Category = "Disaster Relief"
	CategoryAnimalWelfare        Category = "Animal Welfare"
	CategoryArtsCulture          Category = "Arts & Culture"
	CategoryTechnology           Category = "Technology"
	CategoryCommunityDevelopment Category = "Community Development"
	CategoryResearch             Category = "Research"
)

var categories = []Category{
	CategoryEducation,
	CategoryHealthcare,
	CategoryEnvironment,
	CategoryPovertyRelief,
	CategoryDisasterRelief,
	CategoryAnimalWelfare,
	CategoryArtsCulture,
	CategoryTechnology,
	CategoryCommunityDevelopment,
	CategoryResearch,
}

// Categories returns all the valid categories in display order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// ParseCategory returns the category named s. Matching is exact.
func ParseCategory(s string) (Category, error) {
	for _, c := range categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", s)}
}

// Valid reports whether c belongs to the set.
func (c Category) Valid() bool {
	_, err := ParseCategory(string(c))
	return err == nil
}
