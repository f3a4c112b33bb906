package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFieldMap_CommaSeparated(t *testing.T) {
	fields, malformed := ParseFieldMap("your-name=name, your-email=email,your-phone=phone")

	require.Empty(t, malformed)
	assert.Equal(t, 3, fields.Len())

	dest, ok := fields.Get("your-name")
	require.True(t, ok)
	assert.Equal(t, "name", dest)

	dest, ok = fields.Get("your-phone")
	require.True(t, ok)
	assert.Equal(t, "phone", dest)
}

func TestParseFieldMap_NewlineSeparated(t *testing.T) {
	fields, malformed := ParseFieldMap("your-name=name\nyour-email=email\r\nyour-message=message")

	require.Empty(t, malformed)
	assert.Equal(t, 3, fields.Len())

	dest, ok := fields.Get("your-message")
	require.True(t, ok)
	assert.Equal(t, "message", dest)
}

func TestParseFieldMap_MixedSeparators(t *testing.T) {
	fields, malformed := ParseFieldMap("a=1,b=2\nc=3\r\nd=4")

	require.Empty(t, malformed)
	assert.Equal(t, 4, fields.Len())
}

func TestParseFieldMap_SplitsOnFirstEquals(t *testing.T) {
	fields, malformed := ParseFieldMap("query=a=b")

	require.Empty(t, malformed)
	dest, ok := fields.Get("query")
	require.True(t, ok)
	assert.Equal(t, "a=b", dest)
}

func TestParseFieldMap_CollectsMalformedPairs(t *testing.T) {
	fields, malformed := ParseFieldMap("good=ok, nopair, =nodest, nosource=, also-good=yes")

	assert.Equal(t, 2, fields.Len())
	assert.Equal(t, []string{"nopair", "=nodest", "nosource="}, malformed)
}

func TestParseFieldMap_EmptyAndWhitespace(t *testing.T) {
	fields, malformed := ParseFieldMap("  \n , ,\r\n ")

	assert.Equal(t, 0, fields.Len())
	assert.Empty(t, malformed)
}

func TestParseFieldMap_DuplicateSourceOverwrites(t *testing.T) {
	fields, malformed := ParseFieldMap("a=first, a=second")

	require.Empty(t, malformed)
	assert.Equal(t, 1, fields.Len())
	dest, _ := fields.Get("a")
	assert.Equal(t, "second", dest)
}

func TestParseFieldMap_PreservesOrder(t *testing.T) {
	fields, _ := ParseFieldMap("z=1, a=2, m=3")

	pairs := fields.Pairs()
	require.Len(t, pairs, 3)
	assert.Equal(t, "z", pairs[0].Source)
	assert.Equal(t, "a", pairs[1].Source)
	assert.Equal(t, "m", pairs[2].Source)
}

func TestFieldMapFromPairs(t *testing.T) {
	fields, malformed := FieldMapFromPairs(map[string]string{
		"Your-Name":  "name",
		"your-email": "email",
		"!!!":        "nowhere",
		"empty-dest": "",
	})

	assert.Equal(t, 2, fields.Len())
	assert.ElementsMatch(t, []string{"!!!=nowhere", "empty-dest="}, malformed)

	dest, ok := fields.Get("your-name")
	require.True(t, ok)
	assert.Equal(t, "name", dest)
}

func TestFieldMapFromPairs_StableOrder(t *testing.T) {
	fields, _ := FieldMapFromPairs(map[string]string{
		"c": "3", "a": "1", "b": "2",
	})

	pairs := fields.Pairs()
	require.Len(t, pairs, 3)
	assert.Equal(t, "a", pairs[0].Source)
	assert.Equal(t, "b", pairs[1].Source)
	assert.Equal(t, "c", pairs[2].Source)
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "your-email", NormalizeKey("  Your-Email  "))
	assert.Equal(t, "field_1", NormalizeKey("Field_1!"))
	assert.Equal(t, "", NormalizeKey("  !@#  "))
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "hello", SanitizeText("  hello\x00\x1f  "))
	assert.Equal(t, "a b", SanitizeText("a b"))
}

func TestUniqueMalformed(t *testing.T) {
	out := UniqueMalformed([]string{"bad", "worse", "bad", "worse", "new"})
	assert.Equal(t, []string{"bad", "worse", "new"}, out)
}

func TestFormMapping_IsEmpty(t *testing.T) {
	assert.True(t, FormMapping{}.IsEmpty())
	assert.True(t, FormMapping{EventType: EventTypeDefault, EmailField: EmailFieldDefault}.IsEmpty())
	assert.True(t, FormMapping{EventType: EventTypeLegacy}.IsEmpty())

	assert.False(t, FormMapping{FormID: 5}.IsEmpty())
	assert.False(t, FormMapping{ConsentKey: "newsletter"}.IsEmpty())
	assert.False(t, FormMapping{EventType: "custom_event"}.IsEmpty())
	assert.False(t, FormMapping{EmailField: "contact-email"}.IsEmpty())

	withFields := FormMapping{Fields: NewFieldMap()}
	withFields.Fields.Set("a", "b")
	assert.False(t, withFields.IsEmpty())
}

func TestFormMapping_Normalize(t *testing.T) {
	m := FormMapping{FormID: 7}
	m.Normalize()

	assert.Equal(t, EventTypeDefault, m.EventType)
	assert.Equal(t, EmailFieldDefault, m.EmailField)
	assert.NotNil(t, m.Fields)
}

func TestFind(t *testing.T) {
	rows := []FormMapping{
		{FormID: 1, EventType: "one"},
		{FormID: 2, EventType: "two"},
	}

	row, ok := Find(rows, 2)
	require.True(t, ok)
	assert.Equal(t, "two", row.EventType)

	_, ok = Find(rows, 99)
	assert.False(t, ok)
}
