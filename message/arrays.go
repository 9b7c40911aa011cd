package message

import "github.com/pgwire/pgwire/wire"

// Every iterator here wraps a tail slice and a Next method that returns
// (zero, false) once the slice is exhausted or the next element fails to
// parse — whichever comes first. Declared element counts embedded in the
// wire format are intentionally ignored (see SPEC_FULL.md §9(c)): a
// server whose declared count disagrees with what actually follows still
// yields every well-formed element up to the first bad one. Iterators are
// plain structs holding only the remaining tail, so copying one (as Go
// copies any struct value) yields an independent, restartable iterator —
// advancing a copy never affects the original.

// Int16Array iterates a sequence of big-endian int16 values.
type Int16Array struct{ tail []byte }

// Next returns the next element, or false when exhausted/malformed.
func (a *Int16Array) Next() (uint16, bool) {
	c := wire.NewCursor(a.tail)
	v, err := c.ReadUint16()
	if err != nil {
		return 0, false
	}
	a.tail = c.Remaining()
	return v, true
}

// Int32Array iterates a sequence of big-endian uint32 values (type OIDs).
type Int32Array struct{ tail []byte }

// Next returns the next element, or false when exhausted/malformed.
func (a *Int32Array) Next() (uint32, bool) {
	c := wire.NewCursor(a.tail)
	v, err := c.ReadUint32()
	if err != nil {
		return 0, false
	}
	a.tail = c.Remaining()
	return v, true
}

// StringArray iterates a sequence of NUL-terminated byte strings.
type StringArray struct{ tail []byte }

// Next returns the next element, or false when exhausted/malformed.
func (a *StringArray) Next() ([]byte, bool) {
	c := wire.NewCursor(a.tail)
	v, err := c.ReadCString()
	if err != nil {
		return nil, false
	}
	a.tail = c.Remaining()
	return v, true
}

// Field is one type-coded value of an ErrorResponse or NoticeResponse.
// Duplicate type codes are permitted; field order is preserved but not
// otherwise meaningful.
type Field struct {
	Type  byte
	Value []byte
}

// FieldArray iterates the fields of an ErrorResponse or NoticeResponse.
type FieldArray struct{ tail []byte }

// Next returns the next field, or false when exhausted. A type code of
// zero is the array's own terminator, and running out of bytes mid-field
// (a body truncated before its terminator) ends iteration the same way:
// either stops cleanly, never an error.
func (a *FieldArray) Next() (Field, bool) {
	c := wire.NewCursor(a.tail)
	typeCode, err := c.ReadUint8()
	if err != nil || typeCode == 0 {
		return Field{}, false
	}
	value, err := c.ReadCString()
	if err != nil {
		return Field{}, false
	}
	a.tail = c.Remaining()
	return Field{Type: typeCode, Value: value}, true
}

// DataRowValueArray iterates the column values of a DataRow. A zero-length
// column is represented by a non-nil, zero-length slice; a NULL column is
// represented by Value == nil && Null == true.
type DataRowValueArray struct{ tail []byte }

// DataRowValue is one column of a DataRow.
type DataRowValue struct {
	Value []byte
	Null  bool
}

// Next returns the next column value, or false when exhausted/malformed.
func (a *DataRowValueArray) Next() (DataRowValue, bool) {
	c := wire.NewCursor(a.tail)
	length, err := c.ReadUint32()
	if err != nil {
		return DataRowValue{}, false
	}
	if length == 0xFFFFFFFF {
		a.tail = c.Remaining()
		return DataRowValue{Null: true}, true
	}
	value, err := c.ReadBytes(int(length))
	if err != nil {
		return DataRowValue{}, false
	}
	a.tail = c.Remaining()
	return DataRowValue{Value: value}, true
}

// RowDescriptionField describes one column of a RowDescription.
type RowDescriptionField struct {
	Name             []byte
	TableOID         uint32 // 0 means "not a real column"
	AttributeNumber  int16  // 0 means "not a real column"
	DataTypeOID      uint32
	DataTypeSize     int16
	DataTypeModifier uint32
	FormatCode       uint16
}

// RowDescriptionFieldArray iterates the fields of a RowDescription.
type RowDescriptionFieldArray struct{ tail []byte }

// Next returns the next field, or false when exhausted/malformed.
func (a *RowDescriptionFieldArray) Next() (RowDescriptionField, bool) {
	c := wire.NewCursor(a.tail)

	name, err := c.ReadCString()
	if err != nil {
		return RowDescriptionField{}, false
	}
	tableOID, err := c.ReadUint32()
	if err != nil {
		return RowDescriptionField{}, false
	}
	attrNum, err := c.ReadInt16()
	if err != nil {
		return RowDescriptionField{}, false
	}
	typeOID, err := c.ReadUint32()
	if err != nil {
		return RowDescriptionField{}, false
	}
	typeSize, err := c.ReadInt16()
	if err != nil {
		return RowDescriptionField{}, false
	}
	typeMod, err := c.ReadUint32()
	if err != nil {
		return RowDescriptionField{}, false
	}
	formatCode, err := c.ReadUint16()
	if err != nil {
		return RowDescriptionField{}, false
	}

	a.tail = c.Remaining()
	return RowDescriptionField{
		Name:             name,
		TableOID:         tableOID,
		AttributeNumber:  attrNum,
		DataTypeOID:      typeOID,
		DataTypeSize:     typeSize,
		DataTypeModifier: typeMod,
		FormatCode:       formatCode,
	}, true
}
