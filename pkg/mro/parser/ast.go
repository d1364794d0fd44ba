package parser

import "github.com/askiada/go-martian/pkg/mro/model"

// AST is the raw syntax tree of one MRO file.
type AST struct {
	File      string
	Includes  []Include
	FileTypes []FileTypeDecl
	Stages    []RawStage
	Pipeline  *RawPipeline
}

// Include is an "@include" directive. It is recorded, never followed.
type Include struct {
	Path string
	Pos  Pos
}

// FileTypeDecl is a "filetype <name>;" declaration.
type FileTypeDecl struct {
	Name string
	Pos  Pos
}

// RawEntry is a stage or header entry as written: modifier, type, then the optional name and
// help. Parts has between 2 and 4 elements; string literals are stored unquoted.
type RawEntry struct {
	Parts []string
	Pos   Pos
}

// RawStage is a "stage" block before normalisation.
type RawStage struct {
	Name    string
	Entries []RawEntry
	Split   []RawEntry
	Pos     Pos
}

// RawPipeline is a "pipeline" block before normalisation.
type RawPipeline struct {
	Name   string
	Header []RawEntry
	Calls  []model.Call
	Return []model.Binding
	Pos    Pos
}
