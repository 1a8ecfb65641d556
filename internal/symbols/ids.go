package symbols

// ID indexes a symbol inside a Table.
type ID uint32

// NoID marks the absence of a symbol.
const NoID ID = 0

// IsValid reports whether the ID refers to a real symbol.
func (id ID) IsValid() bool {
	return id != NoID
}
