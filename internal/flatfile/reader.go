package flatfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/roach88/chronorm/internal/attribute"
)

// Resolver looks up portals by name.
type Resolver interface {
	Portal(name string) (*attribute.Portal, bool)
}

// Options configures Read.
type Options struct {
	// Default receives rows before the first class line.
	Default *attribute.Portal

	// Layout is the time layout for date and timestamp values; "" accepts
	// the default layouts.
	Layout string
}

// Table is the rows read for one portal.
type Table struct {
	Portal *attribute.Portal
	Rows   []any
}

// Error is a malformed line that is not a value parse failure.
type Error struct {
	Line    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

type section struct {
	portal *attribute.Portal
	header []attribute.AnyAttribute
	rows   []any
}

// Read parses every section of r. Sections naming the same portal are
// merged in file order. Value parse failures are attribute parse errors
// carrying the 1-based line.
func Read(r io.Reader, resolve Resolver, opts Options) ([]Table, error) {
	var (
		tables  []Table
		index   = make(map[*attribute.Portal]int)
		current *section
	)
	flush := func() {
		if current == nil || current.portal == nil {
			return
		}
		i, ok := index[current.portal]
		if !ok {
			i = len(tables)
			index[current.portal] = i
			tables = append(tables, Table{Portal: current.portal})
		}
		tables[i].Rows = append(tables[i].Rows, current.rows...)
	}
	if opts.Default != nil {
		current = &section{portal: opts.Default}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "//") {
			continue
		}

		if name, ok := strings.CutPrefix(text, "class "); ok {
			flush()
			name = strings.TrimSpace(name)
			if resolve == nil {
				return nil, &Error{Line: line, Message: fmt.Sprintf("unknown portal %q", name)}
			}
			p, ok := resolve.Portal(name)
			if !ok {
				return nil, &Error{Line: line, Message: fmt.Sprintf("unknown portal %q", name)}
			}
			current = &section{portal: p}
			continue
		}
		if current == nil {
			return nil, &Error{Line: line, Message: "data before the first class line"}
		}

		tokens, err := tokenize(text)
		if err != nil {
			return nil, &Error{Line: line, Message: err.Error()}
		}

		if current.header == nil {
			header, err := readHeader(current.portal, tokens)
			if err != nil {
				return nil, &Error{Line: line, Message: err.Error()}
			}
			current.header = header
			continue
		}

		if len(tokens) != len(current.header) {
			return nil, &Error{
				Line:    line,
				Message: fmt.Sprintf("%d values for %d attributes", len(tokens), len(current.header)),
			}
		}
		owner := current.portal.NewOwner()
		for i, tok := range tokens {
			if err := setValue(current.header[i], tok, owner, line, opts.Layout); err != nil {
				return nil, err
			}
		}
		current.rows = append(current.rows, owner)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read flat file: %w", err)
	}
	flush()
	return tables, nil
}

// ReadFile parses the flat file at path.
func ReadFile(path string, resolve Resolver, opts Options) ([]Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open flat file: %w", err)
	}
	defer f.Close()

	tables, err := Read(f, resolve, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tables, nil
}

func readHeader(p *attribute.Portal, tokens []token) ([]attribute.AnyAttribute, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty header")
	}
	header := make([]attribute.AnyAttribute, len(tokens))
	seen := make(map[string]bool, len(tokens))
	for i, tok := range tokens {
		if tok.kind != tokenWord {
			return nil, fmt.Errorf("header holds the %s %q, want an attribute name", tok.kind, tok.text)
		}
		a, ok := p.Attribute(tok.text)
		if !ok {
			return nil, fmt.Errorf("%s has no attribute %q", p.BusClassName(), tok.text)
		}
		if seen[tok.text] {
			return nil, fmt.Errorf("attribute %q appears twice in the header", tok.text)
		}
		seen[tok.text] = true
		header[i] = a
	}
	return header, nil
}

func setValue(a attribute.AnyAttribute, tok token, owner any, line int, layout string) error {
	switch tok.kind {
	case tokenString:
		return a.ParseStringAndSet(tok.text, owner, line, layout)
	case tokenNumber:
		return a.ParseNumberAndSet(tok.text, owner, line, layout)
	default:
		return a.ParseWordAndSet(tok.text, owner, line, layout)
	}
}
