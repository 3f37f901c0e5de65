package core

import "fmt"

// numericRank orders numeric types by the values they can hold. DOUBLE and
// DECIMAL share the top rank.
var numericRank = map[DataType]int{
	TypeTinyInt:  0,
	TypeSmallInt: 1,
	TypeInt:      2,
	TypeBigInt:   3,
	TypeFloat:    4,
	TypeDouble:   5,
	TypeDecimal:  5,
}

// Compatible reports whether data inferred as source may be written to a
// column declared as target.
func Compatible(source, target DataType) bool {
	if source == target {
		return true
	}
	if target == TypeString {
		return true
	}

	srcRank, srcNumeric := numericRank[source]
	dstRank, dstNumeric := numericRank[target]
	if srcNumeric && dstNumeric {
		return srcRank <= dstRank
	}

	if source == TypeString && (target == TypeTimestamp || target == TypeBoolean) {
		return true
	}
	return false
}

// IncompatibilityReason explains why source cannot be written to target.
// It returns "" for compatible pairs.
func IncompatibilityReason(source, target DataType) string {
	if Compatible(source, target) {
		return ""
	}
	if source.IsNumeric() && target.IsNumeric() {
		return fmt.Sprintf("%s values would be narrowed to %s", source, target)
	}
	return fmt.Sprintf("column contains %s values but the table expects %s", source, target)
}
