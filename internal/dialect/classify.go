package dialect

import (
	"strconv"
	"strings"
)

// typeAliases maps lower-case declared type names to type codes.
var typeAliases = map[string]SQLType{
	"bit":                         Bit,
	"boolean":                     Boolean,
	"bool":                        Boolean,
	"tinyint":                     TinyInt,
	"smallint":                    SmallInt,
	"int2":                        SmallInt,
	"int":                         Integer,
	"integer":                     Integer,
	"int4":                        Integer,
	"mediumint":                   Integer,
	"bigint":                      BigInt,
	"int8":                        BigInt,
	"float":                       Float,
	"real":                        Real,
	"float4":                      Real,
	"double":                      Double,
	"double precision":            Double,
	"float8":                      Double,
	"numeric":                     Numeric,
	"decimal":                     Decimal,
	"char":                        Char,
	"character":                   Char,
	"nchar":                       NChar,
	"varchar":                     VarChar,
	"character varying":           VarChar,
	"nvarchar":                    NVarChar,
	"text":                        LongVarChar,
	"clob":                        Clob,
	"date":                        Date,
	"time":                        Time,
	"time without time zone":      Time,
	"timestamp":                   Timestamp,
	"timestamp without time zone": Timestamp,
	"datetime":                    Timestamp,
	"binary":                      Binary,
	"varbinary":                   VarBinary,
	"bytea":                       VarBinary,
	"blob":                        Blob,
	"longblob":                    Blob,
}

// Classify maps a declared column type such as "VARCHAR(50)" or
// "decimal(12,2)" to a type code plus the size, precision, and scale written
// in its parentheses. Unknown names classify as Other.
func Classify(declared string) (t SQLType, size, precision, scale int) {
	name := strings.ToLower(strings.TrimSpace(declared))
	var args []int
	if open := strings.IndexByte(name, '('); open >= 0 {
		if end := strings.IndexByte(name[open:], ')'); end > 0 {
			for _, a := range strings.Split(name[open+1:open+end], ",") {
				if n, err := strconv.Atoi(strings.TrimSpace(a)); err == nil {
					args = append(args, n)
				}
			}
			name = strings.TrimSpace(name[:open] + name[open+end+1:])
		}
	}
	name = strings.TrimSuffix(name, " unsigned")

	t, ok := typeAliases[name]
	if !ok {
		return Other, 0, 0, 0
	}

	switch t {
	case Numeric, Decimal:
		if len(args) > 0 {
			precision = args[0]
		}
		if len(args) > 1 {
			scale = args[1]
		}
		size = precision
	case Float:
		size = 8
		if len(args) > 0 && args[0] <= 24 {
			size = 4
		}
	case Double:
		size = 8
	case Real:
		size = 4
	default:
		if len(args) > 0 {
			size = args[0]
		}
	}
	return t, size, precision, scale
}
