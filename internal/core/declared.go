package core

import "strings"

// declaredTypes maps warehouse type spellings (Databricks, PostgreSQL and
// SQLite) to the validator's vocabulary.
var declaredTypes = map[string]DataType{
	"tinyint": TypeTinyInt, "int1": TypeTinyInt, "byte": TypeTinyInt,

	"smallint": TypeSmallInt, "int2": TypeSmallInt, "short": TypeSmallInt, "smallserial": TypeSmallInt,

	"int": TypeInt, "integer": TypeInt, "int4": TypeInt, "serial": TypeInt, "mediumint": TypeInt,

	"bigint": TypeBigInt, "int8": TypeBigInt, "long": TypeBigInt, "bigserial": TypeBigInt,

	"float": TypeFloat, "float4": TypeFloat, "real": TypeFloat,

	"double": TypeDouble, "float8": TypeDouble,

	"decimal": TypeDecimal, "numeric": TypeDecimal, "dec": TypeDecimal, "number": TypeDecimal,

	"boolean": TypeBoolean, "bool": TypeBoolean,

	"timestamp": TypeTimestamp, "timestamptz": TypeTimestamp, "timestamp_ntz": TypeTimestamp,
	"timestamp_ltz": TypeTimestamp, "datetime": TypeTimestamp,

	"date": TypeDate,

	"string": TypeString, "text": TypeString, "varchar": TypeString, "char": TypeString,
	"character": TypeString, "nvarchar": TypeString, "nchar": TypeString, "clob": TypeString,
	"citext": TypeString, "uuid": TypeString,

	"binary": TypeBinary, "bytea": TypeBinary, "blob": TypeBinary, "varbinary": TypeBinary,

	"array": TypeArray,
	"map":   TypeMap,

	"struct": TypeStruct, "record": TypeStruct,

	"variant": TypeVariant, "json": TypeVariant, "jsonb": TypeVariant,
}

// ParseDeclaredType maps a raw column type such as "decimal(10,2)",
// "character varying(20)", "array<int>" or "integer[]" to a DataType.
// Unrecognised types are treated as STRING.
func ParseDeclaredType(raw string) DataType {
	s := strings.ToLower(strings.TrimSpace(raw))
	if strings.HasSuffix(s, "[]") {
		return TypeArray
	}
	if i := strings.IndexAny(s, "(<"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if t, ok := declaredTypes[s]; ok {
		return t
	}
	if fields := strings.Fields(s); len(fields) > 0 {
		if t, ok := declaredTypes[fields[0]]; ok {
			return t
		}
	}
	return TypeString
}
