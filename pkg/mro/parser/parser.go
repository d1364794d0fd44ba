package parser

import (
	"strconv"
	"strings"

	"github.com/askiada/go-martian/pkg/mro/model"
)

// SourceLangs are the type tokens accepted after a src modifier.
var SourceLangs = []string{"py", "exec", "comp"}

var callModifiers = map[string]bool{"local": true, "preflight": true, "volatile": true}

type parser struct {
	lex  *lexer
	file string
	tok  token
}

// Parse turns MRO source text into its raw syntax tree.
// Top-level includes, filetype declarations, stages and at most one pipeline may appear in
// any order.
func Parse(file string, src []byte) (*AST, error) {
	p := &parser{lex: newLexer(file, src), file: file}
	if err := p.next(); err != nil {
		return nil, err
	}

	ast := &AST{File: file}
	for p.tok.kind != tokEOF {
		start := p.tok
		switch {
		case p.isPunct("@"):
			inc, err := p.include()
			if err != nil {
				return nil, err
			}
			ast.Includes = append(ast.Includes, inc)
		case p.isWord("filetype"):
			decl, err := p.fileType()
			if err != nil {
				return nil, err
			}
			ast.FileTypes = append(ast.FileTypes, decl)
		case p.isWord("stage"):
			stage, err := p.stage()
			if err != nil {
				return nil, err
			}
			ast.Stages = append(ast.Stages, stage)
		case p.isWord("pipeline"):
			if ast.Pipeline != nil {
				return nil, p.errorf(start, ErrDuplicatePipeline, "pipeline %s already declared in this file", ast.Pipeline.Name)
			}
			pipe, err := p.pipeline()
			if err != nil {
				return nil, err
			}
			ast.Pipeline = pipe
		default:
			return nil, p.errorf(start, ErrUnexpectedToken, "unexpected %s at top level", start.describe())
		}
	}

	return ast, nil
}

func (p *parser) next() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) errorf(tok token, err error, format string, args ...any) *ParseError {
	return newError(p.file, tok.pos, err, format, args...)
}

func (p *parser) isPunct(c string) bool {
	return p.tok.kind == tokPunct && p.tok.text == c
}

func (p *parser) isWord(w string) bool {
	return p.tok.kind == tokWord && p.tok.text == w
}

func (p *parser) expectPunct(c string) (token, error) {
	tok := p.tok
	if !p.isPunct(c) {
		return tok, p.errorf(tok, ErrUnexpectedToken, "expected '%s', found %s", c, tok.describe())
	}
	return tok, p.next()
}

func (p *parser) expectKeyword(w string) error {
	if !p.isWord(w) {
		return p.errorf(p.tok, ErrUnexpectedToken, "expected %q, found %s", w, p.tok.describe())
	}
	return p.next()
}

func (p *parser) expectString() (token, error) {
	tok := p.tok
	if tok.kind != tokString {
		return tok, p.errorf(tok, ErrUnexpectedToken, "expected %s, found %s", tokString, tok.describe())
	}
	return tok, p.next()
}

func isLabel(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')) {
			return false
		}
	}
	return true
}

func (p *parser) label(what string) (token, error) {
	tok := p.tok
	if tok.kind != tokWord || !isLabel(tok.text) {
		return tok, p.errorf(tok, ErrUnexpectedToken, "expected %s name, found %s", what, tok.describe())
	}
	return tok, p.next()
}

// include := '@' 'include' STRING
func (p *parser) include() (Include, error) {
	at := p.tok
	if err := p.next(); err != nil {
		return Include{}, err
	}
	if err := p.expectKeyword("include"); err != nil {
		return Include{}, err
	}
	path, err := p.expectString()
	if err != nil {
		return Include{}, err
	}
	return Include{Path: path.text, Pos: at.pos}, nil
}

// filetype := 'filetype' NAME ';'
func (p *parser) fileType() (FileTypeDecl, error) {
	if err := p.next(); err != nil {
		return FileTypeDecl{}, err
	}
	name := p.tok
	if name.kind != tokWord {
		return FileTypeDecl{}, p.errorf(name, ErrUnexpectedToken, "expected file type, found %s", name.describe())
	}
	if !model.IsFileType(name.text) {
		return FileTypeDecl{}, p.errorf(name, ErrUnknownFileType, "unknown file type %q", name.text)
	}
	if err := p.next(); err != nil {
		return FileTypeDecl{}, err
	}
	if _, err := p.expectPunct(";"); err != nil {
		return FileTypeDecl{}, err
	}
	return FileTypeDecl{Name: name.text, Pos: name.pos}, nil
}

// stage := 'stage' LABEL '(' entries ')' [ 'split' 'using' '(' entries ')' ]
func (p *parser) stage() (RawStage, error) {
	kw := p.tok
	if err := p.next(); err != nil {
		return RawStage{}, err
	}
	name, err := p.label("stage")
	if err != nil {
		return RawStage{}, err
	}

	stage := RawStage{Name: name.text, Pos: kw.pos}
	stage.Entries, err = p.entries(false)
	if err != nil {
		return RawStage{}, err
	}

	if p.isWord("split") {
		if err := p.next(); err != nil {
			return RawStage{}, err
		}
		if err := p.expectKeyword("using"); err != nil {
			return RawStage{}, err
		}
		stage.Split, err = p.entries(false)
		if err != nil {
			return RawStage{}, err
		}
	}

	return stage, nil
}

// entries := '(' [ entry ] { ',' [ entry ] } ')'
// Empty elements, including a trailing one, are ignored.
func (p *parser) entries(requireName bool) ([]RawEntry, error) {
	open, err := p.expectPunct("(")
	if err != nil {
		return nil, err
	}

	var list []RawEntry
	for {
		switch {
		case p.isPunct(")"):
			return list, p.next()
		case p.isPunct(","):
			if err := p.next(); err != nil {
				return nil, err
			}
			continue
		case p.tok.kind == tokEOF:
			return nil, p.errorf(open, ErrUnexpectedToken, "unmatched '('")
		}

		entry, err := p.entry(requireName)
		if err != nil {
			return nil, err
		}
		list = append(list, entry)

		if !p.isPunct(",") && !p.isPunct(")") {
			if p.tok.kind == tokEOF {
				return nil, p.errorf(open, ErrUnexpectedToken, "unmatched '('")
			}
			return nil, p.errorf(p.tok, ErrUnexpectedToken, "expected ',' or ')', found %s", p.tok.describe())
		}
	}
}

// entry := MODIFIER TYPE [ NAME ] [ STRING ]
func (p *parser) entry(requireName bool) (RawEntry, error) {
	mod := p.tok
	switch {
	case p.isWord(string(model.In)), p.isWord(string(model.Out)), p.isWord(string(model.Src)):
	default:
		return RawEntry{}, p.errorf(mod, ErrUnexpectedToken, "expected in, out or src, found %s", mod.describe())
	}
	if err := p.next(); err != nil {
		return RawEntry{}, err
	}

	entry := RawEntry{Parts: []string{mod.text}, Pos: mod.pos}
	if model.Modifier(mod.text) == model.Src {
		return p.srcEntry(entry)
	}

	typ, err := p.typeToken()
	if err != nil {
		return RawEntry{}, err
	}
	entry.Parts = append(entry.Parts, typ)

	switch {
	case p.tok.kind == tokWord:
		name, err := p.label("field")
		if err != nil {
			return RawEntry{}, err
		}
		entry.Parts = append(entry.Parts, name.text)
	case p.tok.kind == tokString:
		return RawEntry{}, p.errorf(p.tok, ErrMalformedEntry, "expected field name before help string")
	case requireName:
		return RawEntry{}, p.errorf(p.tok, ErrMalformedEntry, "expected field name, found %s", p.tok.describe())
	default:
		// legacy "<modifier> <type>" entry
		return entry, nil
	}

	if p.tok.kind == tokString {
		entry.Parts = append(entry.Parts, p.tok.text)
		if err := p.next(); err != nil {
			return RawEntry{}, err
		}
	}

	return entry, nil
}

func (p *parser) srcEntry(entry RawEntry) (RawEntry, error) {
	lang := p.tok
	known := false
	for _, l := range SourceLangs {
		if p.isWord(l) {
			known = true
		}
	}
	if !known {
		return RawEntry{}, p.errorf(lang, ErrUnknownType, "unknown src language %s", lang.describe())
	}
	if err := p.next(); err != nil {
		return RawEntry{}, err
	}
	entry.Parts = append(entry.Parts, lang.text)

	if p.tok.kind == tokString {
		entry.Parts = append(entry.Parts, p.tok.text)
		if err := p.next(); err != nil {
			return RawEntry{}, err
		}
	}
	return entry, nil
}

// typeToken := WORD { '[' ']' }
func (p *parser) typeToken() (string, error) {
	tok := p.tok
	if tok.kind != tokWord {
		return "", p.errorf(tok, ErrUnexpectedToken, "expected type, found %s", tok.describe())
	}
	if err := p.next(); err != nil {
		return "", err
	}

	text := tok.text
	for p.isPunct("[") {
		open := p.tok
		if err := p.next(); err != nil {
			return "", err
		}
		if !p.isPunct("]") {
			return "", p.errorf(open, ErrUnexpectedToken, "unmatched '['")
		}
		if err := p.next(); err != nil {
			return "", err
		}
		text += "[]"
	}

	if _, err := model.ParseType(text); err != nil {
		return "", p.errorf(tok, ErrUnknownType, "unknown type %q", text)
	}
	return text, nil
}

// pipeline := 'pipeline' LABEL '(' entries ')' '{' { call } 'return' '(' bindings ')' '}'
func (p *parser) pipeline() (*RawPipeline, error) {
	kw := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	name, err := p.label("pipeline")
	if err != nil {
		return nil, err
	}

	pipe := &RawPipeline{Name: name.text, Pos: kw.pos}
	pipe.Header, err = p.entries(true)
	if err != nil {
		return nil, err
	}

	brace, err := p.expectPunct("{")
	if err != nil {
		return nil, err
	}
	for p.isWord("call") {
		call, err := p.call()
		if err != nil {
			return nil, err
		}
		pipe.Calls = append(pipe.Calls, call)
	}

	if p.tok.kind == tokEOF {
		return nil, p.errorf(brace, ErrUnexpectedToken, "unmatched '{'")
	}
	if err := p.expectKeyword("return"); err != nil {
		return nil, err
	}
	pipe.Return, err = p.bindings()
	if err != nil {
		return nil, err
	}

	if p.tok.kind == tokEOF {
		return nil, p.errorf(brace, ErrUnexpectedToken, "unmatched '{'")
	}
	if _, err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return pipe, nil
}

// call := 'call' { MODIFIER } LABEL '(' bindings ')'
func (p *parser) call() (model.Call, error) {
	if err := p.next(); err != nil {
		return model.Call{}, err
	}

	var call model.Call
	for p.tok.kind == tokWord && callModifiers[p.tok.text] {
		call.Modifiers = append(call.Modifiers, p.tok.text)
		if err := p.next(); err != nil {
			return model.Call{}, err
		}
	}

	name, err := p.label("call")
	if err != nil {
		return model.Call{}, err
	}
	call.Name = name.text
	call.Bindings, err = p.bindings()
	if err != nil {
		return model.Call{}, err
	}
	return call, nil
}

// bindings := '(' [ LABEL '=' value ] { ',' [ LABEL '=' value ] } ')'
func (p *parser) bindings() ([]model.Binding, error) {
	open, err := p.expectPunct("(")
	if err != nil {
		return nil, err
	}

	var list []model.Binding
	for {
		switch {
		case p.isPunct(")"):
			return list, p.next()
		case p.isPunct(","):
			if err := p.next(); err != nil {
				return nil, err
			}
			continue
		case p.tok.kind == tokEOF:
			return nil, p.errorf(open, ErrUnexpectedToken, "unmatched '('")
		}

		key, err := p.label("binding")
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct("="); err != nil {
			return nil, err
		}
		value, ref, err := p.value()
		if err != nil {
			return nil, err
		}
		list = append(list, model.Binding{Key: key.text, Value: value, Ref: ref})

		if !p.isPunct(",") && !p.isPunct(")") {
			if p.tok.kind == tokEOF {
				return nil, p.errorf(open, ErrUnexpectedToken, "unmatched '('")
			}
			return nil, p.errorf(p.tok, ErrUnexpectedToken, "expected ',' or ')', found %s", p.tok.describe())
		}
	}
}

// value := STRING | WORD | '[' values ']' | '{' STRING ':' value ... '}'
// It returns the canonical source form of the value.
func (p *parser) value() (string, *model.Ref, error) {
	tok := p.tok
	switch {
	case tok.kind == tokString:
		return strconv.Quote(tok.text), nil, p.next()
	case tok.kind == tokWord:
		return tok.text, refOf(tok.text), p.next()
	case p.isPunct("["):
		items, err := p.valueList("[", "]", false)
		if err != nil {
			return "", nil, err
		}
		return "[" + strings.Join(items, ", ") + "]", nil, nil
	case p.isPunct("{"):
		items, err := p.valueList("{", "}", true)
		if err != nil {
			return "", nil, err
		}
		return "{" + strings.Join(items, ", ") + "}", nil, nil
	}
	return "", nil, p.errorf(tok, ErrUnexpectedToken, "expected value, found %s", tok.describe())
}

func (p *parser) valueList(open, closing string, keyed bool) ([]string, error) {
	start, err := p.expectPunct(open)
	if err != nil {
		return nil, err
	}

	items := []string{}
	for {
		switch {
		case p.isPunct(closing):
			return items, p.next()
		case p.isPunct(","):
			if err := p.next(); err != nil {
				return nil, err
			}
			continue
		case p.tok.kind == tokEOF:
			return nil, p.errorf(start, ErrUnexpectedToken, "unmatched '%s'", open)
		}

		prefix := ""
		if keyed {
			key, err := p.expectString()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectPunct(":"); err != nil {
				return nil, err
			}
			prefix = strconv.Quote(key.text) + ": "
		}
		item, _, err := p.value()
		if err != nil {
			return nil, err
		}
		items = append(items, prefix+item)
	}
}

// refOf recognises "self.x" and "CALL.x" references. Numbers and literals are not references.
func refOf(word string) *model.Ref {
	target, field, ok := strings.Cut(word, ".")
	if !ok || !isLabel(target) || field == "" {
		return nil
	}
	if c := target[0]; '0' <= c && c <= '9' {
		return nil
	}
	return &model.Ref{Target: target, Field: field}
}
