package rangeindex

// FieldType discriminates a field's key semantics.
type FieldType int

const (
	// FieldNumeric fields hold fixed-width, sign-normalized numeric keys and
	// are queried with an inclusive [lower, upper] range.
	FieldNumeric FieldType = iota
	// FieldString fields hold delimiter-split tag keys and are queried with a
	// union or intersection of tags.
	FieldString
)

func (t FieldType) String() string {
	if t == FieldNumeric {
		return "numeric"
	}
	return "string"
}

// FilterInfo describes one field constraint in a Search call.
//
// For a FieldNumeric field, Lower and Upper bound an inclusive numeric range
// and are given in the same fixed-width little-endian form a Profile returns
// (see EncodeInt32Key); Field.Search normalizes them with ReverseEndian.
//
// For a FieldString field, Lower carries a delimiter-joined list of tags and
// Upper is unused; IsUnion selects union semantics (true) or intersection
// semantics (false, split into one sub-filter per tag by the coordinator).
type FilterInfo struct {
	FieldID int
	Lower   []byte
	Upper   []byte
	IsUnion bool
}
