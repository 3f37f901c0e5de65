package core

import "testing"

func TestParseDeclaredType(t *testing.T) {
	tests := []struct {
		raw  string
		want DataType
	}{
		{"int", TypeInt},
		{"INTEGER", TypeInt},
		{"bigint", TypeBigInt},
		{"tinyint", TypeTinyInt},
		{"smallint", TypeSmallInt},
		{"double", TypeDouble},
		{"double precision", TypeDouble},
		{"real", TypeFloat},
		{"decimal(10,2)", TypeDecimal},
		{"NUMERIC(18, 4)", TypeDecimal},
		{"boolean", TypeBoolean},
		{"timestamp", TypeTimestamp},
		{"timestamp without time zone", TypeTimestamp},
		{"timestamp(3) with time zone", TypeTimestamp},
		{"timestamp_ntz", TypeTimestamp},
		{"date", TypeDate},
		{"string", TypeString},
		{"character varying", TypeString},
		{"varchar(20)", TypeString},
		{"text", TypeString},
		{"bytea", TypeBinary},
		{"BLOB", TypeBinary},
		{"array<int>", TypeArray},
		{"integer[]", TypeArray},
		{"ARRAY", TypeArray},
		{"map<string,int>", TypeMap},
		{"struct<a:int>", TypeStruct},
		{"jsonb", TypeVariant},
		{"variant", TypeVariant},
		{"interval", TypeString},
		{"USER-DEFINED", TypeString},
		{"", TypeString},
	}

	for _, tt := range tests {
		if got := ParseDeclaredType(tt.raw); got != tt.want {
			t.Errorf("ParseDeclaredType(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}
