// Package mapping holds the per-form configuration binding a form id to
// Bloomreach event semantics and field translations.
package mapping

// Default values for a mapping row. EventTypeLegacy is the pre-rename event
// slug still present in older installs.
const (
	EventTypeDefault  = "contact_forms"
	EventTypeLegacy   = "cf7_submit"
	EmailFieldDefault = "your-email"
)

// Pair binds one submitted field name to a destination property name.
type Pair struct {
	Source string
	Dest   string
}

// FieldMap is an ordered source-to-destination mapping. Source keys are
// unique; setting an existing source overwrites its destination in place.
type FieldMap struct {
	pairs []Pair
	index map[string]int
}

func NewFieldMap() *FieldMap {
	return &FieldMap{index: make(map[string]int)}
}

func (m *FieldMap) Set(source, dest string) {
	if i, ok := m.index[source]; ok {
		m.pairs[i].Dest = dest
		return
	}
	m.index[source] = len(m.pairs)
	m.pairs = append(m.pairs, Pair{Source: source, Dest: dest})
}

func (m *FieldMap) Get(source string) (string, bool) {
	if m == nil {
		return "", false
	}
	i, ok := m.index[source]
	if !ok {
		return "", false
	}
	return m.pairs[i].Dest, true
}

// Pairs returns the bindings in insertion order.
func (m *FieldMap) Pairs() []Pair {
	if m == nil {
		return nil
	}
	return m.pairs
}

func (m *FieldMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.pairs)
}

// FormMapping is one configured binding between a form id and Bloomreach
// semantics. Rows are read-only during request handling and replaced
// wholesale on configuration reload.
type FormMapping struct {
	FormID     int
	EventType  string
	ConsentKey string
	EmailField string
	Fields     *FieldMap
}

// IsEmpty reports whether the row carries nothing beyond defaults. Empty rows
// are excluded from the active configuration set.
func (m FormMapping) IsEmpty() bool {
	if m.FormID != 0 || m.ConsentKey != "" || m.Fields.Len() != 0 {
		return false
	}
	eventDefault := m.EventType == "" || m.EventType == EventTypeDefault || m.EventType == EventTypeLegacy
	emailDefault := m.EmailField == "" || m.EmailField == EmailFieldDefault
	return eventDefault && emailDefault
}

// Normalize fills zero-value fields with their defaults.
func (m *FormMapping) Normalize() {
	if m.EventType == "" {
		m.EventType = EventTypeDefault
	}
	if m.EmailField == "" {
		m.EmailField = EmailFieldDefault
	}
	if m.Fields == nil {
		m.Fields = NewFieldMap()
	}
}

// Find returns the mapping for a form id, if one is configured.
func Find(rows []FormMapping, formID int) (FormMapping, bool) {
	for _, row := range rows {
		if row.FormID == formID {
			return row, true
		}
	}
	return FormMapping{}, false
}
