package annotation

// Unknown is the index returned for class names that are not in the category list.
const Unknown = 0

// CategoryIndex maps a class name to its 1-based position in the category list.
type CategoryIndex map[string]int

// NewCategoryIndex numbers categories from 1 in list order. When a name
// appears twice the later position wins.
func NewCategoryIndex(categories []Category) CategoryIndex {
	idx := make(CategoryIndex, len(categories))
	for i, c := range categories {
		idx[c.Name] = i + 1
	}
	return idx
}

// Lookup returns the 1-based index for name, or Unknown.
func (idx CategoryIndex) Lookup(name string) int {
	if i, ok := idx[name]; ok {
		return i
	}
	return Unknown
}
