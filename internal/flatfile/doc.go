// Package flatfile reads and writes portal rows in a line-oriented text
// format.
//
// A file holds one or more sections. A section starts with a class line
// naming the portal, followed by a header line of attribute names and one
// line per row:
//
//	// orders fixture
//	class Order
//	id, status, total
//	1, "open", 12.50
//	2, "closed", null
//
// Values are numbers, quoted strings, or bare words (true, false, null,
// enum names, hex bytes). Commas between values are optional. When the
// reader has a default portal, the class line of the first section may be
// omitted.
package flatfile
