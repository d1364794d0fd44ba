package model

// Binding assigns a value expression to a name, as in "lanes = self.lanes".
type Binding struct {
	Key string
	// Value is the expression in canonical source form.
	Value string
	// Ref is set when Value references another call ("SORT.reads") or the pipeline ("self.lanes").
	Ref *Ref
}

// Ref is a dotted reference inside a binding value.
type Ref struct {
	// Target is "self" or a call name.
	Target string
	Field  string
}

// Self is the Ref target naming the enclosing pipeline.
const Self = "self"

// Call is a pipeline "call" statement.
type Call struct {
	Name      string
	Modifiers []string
	Bindings  []Binding
}

// Pipeline is a parsed pipeline block. It is kept for completeness and drawing only.
type Pipeline struct {
	Name    string
	Inputs  []Field
	Outputs []Field
	Calls   []Call
	Return  []Binding
	File    string
}
