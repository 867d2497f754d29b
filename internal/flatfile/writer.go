package flatfile

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/roach88/chronorm/internal/attribute"
)

// bare families are written unquoted; the rest are quoted strings.
var bare = map[attribute.Family]bool{
	attribute.FamilyBoolean:    true,
	attribute.FamilyByte:       true,
	attribute.FamilyShort:      true,
	attribute.FamilyInt:        true,
	attribute.FamilyLong:       true,
	attribute.FamilyFloat:      true,
	attribute.FamilyDouble:     true,
	attribute.FamilyBigDecimal: true,
}

// Write renders one section for p: the class line, the header of every
// column attribute, and one line per owner. Null values are written as
// the word null.
func Write(w io.Writer, p *attribute.Portal, owners []any) error {
	bw := bufio.NewWriter(w)
	attrs := p.Attributes()

	fmt.Fprintf(bw, "class %s\n", p.BusClassName())
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.AttributeName()
	}
	bw.WriteString(strings.Join(names, ", "))
	bw.WriteByte('\n')

	values := make([]string, len(attrs))
	for _, owner := range owners {
		for i, a := range attrs {
			values[i] = formatValue(a, owner)
		}
		bw.WriteString(strings.Join(values, ", "))
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", p.BusClassName(), err)
	}
	return nil
}

func formatValue(a attribute.AnyAttribute, owner any) string {
	if a.IsAttributeNull(owner) {
		return "null"
	}
	s := a.ValueOfAsString(owner)
	if bare[a.Family()] {
		return s
	}
	return strconv.Quote(s)
}
