package model

// Modifier is the direction of a declared field.
type Modifier string

const (
	In  Modifier = "in"
	Out Modifier = "out"
	Src Modifier = "src"
)

// DefaultTag marks a field whose declaration carried no name.
const DefaultTag = "default"

// Field is one declared input, output or split slot.
type Field struct {
	Type     Type
	Help     *string
	Modifier Modifier
	Name     string
	// DefaultTag is set for legacy "<modifier> <type>" entries, whose name is the type token.
	DefaultTag string
}

// HelpText returns the help string, or "" when none was declared.
func (f Field) HelpText() string {
	if f.Help == nil {
		return ""
	}
	return *f.Help
}

// Renamed returns a copy of f carrying name.
func (f Field) Renamed(name string) Field {
	f.Name = name
	return f
}

// Names lists field names in order.
func Names(fields []Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}
