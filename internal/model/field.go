package model

// FieldName identifies a kind of structured field.
type FieldName string

// Known field names.
const (
	FieldDate       FieldName = "date"
	FieldAmount     FieldName = "amount"
	FieldIdentifier FieldName = "identifier"
)

// ExtractedField is a structured value found in the document text.
type ExtractedField struct {
	Name     FieldName `json:"name"`
	Raw      string    `json:"raw"`
	Value    string    `json:"value"`
	Method   string    `json:"method"`
	Position int       `json:"position"`
}

// Fields is an ordered set of extracted fields.
type Fields []ExtractedField

// Get returns the first field with the given name.
func (f Fields) Get(name FieldName) (ExtractedField, bool) {
	for _, field := range f {
		if field.Name == name {
			return field, true
		}
	}
	return ExtractedField{}, false
}
