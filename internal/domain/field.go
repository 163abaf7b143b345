package domain

// Field is a free-text profile field, identified by its single-letter wire code.
// The codes are part of the memo wire format and must not be renumbered.
type Field byte

const (
	FieldAddress     Field = 'a'
	FieldName        Field = 'n'
	FieldDisplayName Field = 'h'
	FieldBio         Field = 'b'
	FieldImage       Field = 'i'
)

// Wire keys that are not fields.
const (
	KeyEntity  = "z"
	KeyRequest = "rid"
	KeyLinks   = "l"
	KeyDeleted = "d"
)

// Fields lists the editable fields in memo order.
var Fields = []Field{FieldAddress, FieldName, FieldDisplayName, FieldBio, FieldImage}

// Code returns the wire code of f.
func (f Field) Code() string {
	return string(rune(f))
}

// String returns a human name, used in logs and bot replies.
func (f Field) String() string {
	switch f {
	case FieldAddress:
		return "address"
	case FieldName:
		return "name"
	case FieldDisplayName:
		return "display_name"
	case FieldBio:
		return "bio"
	case FieldImage:
		return "image"
	}
	return "unknown"
}

// Deletable reports whether f has a deleted-field code.
func (f Field) Deletable() bool {
	switch f {
	case FieldAddress, FieldName, FieldBio, FieldImage:
		return true
	}
	return false
}

// ParseField maps a wire code or a human name to a Field.
func ParseField(s string) (Field, bool) {
	for _, f := range Fields {
		if s == f.Code() || s == f.String() {
			return f, true
		}
	}
	return 0, false
}
