// Package parser reads MRO source text.
//
// The grammar, in the order the parser applies it:
//
//	file     := { include | filetype | stage | pipeline }
//	include  := '@include' STRING
//	filetype := 'filetype' FILETYPE ';'
//	stage    := 'stage' LABEL '(' entries ')' [ 'split' 'using' '(' entries ')' ]
//	entries  := [ entry ] { ',' [ entry ] }
//	entry    := ('in' | 'out') TYPE [ LABEL [ STRING ] ] | 'src' LANG [ STRING ]
//	TYPE     := WORD [ '[]' [ '[]' ] ]
//	pipeline := 'pipeline' LABEL '(' entries ')' '{' { call } 'return' '(' bindings ')' '}'
//	call     := 'call' { 'local' | 'preflight' | 'volatile' } LABEL '(' bindings ')'
//	bindings := [ LABEL '=' value ] { ',' [ LABEL '=' value ] }
//
// Comments run from '#' or '//' to the end of the line. Parse produces the raw tree, Build
// normalises it into model values and ParseFile does both for a file on disk. Include
// directives are recorded but never followed.
package parser
