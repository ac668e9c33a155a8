package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oebrowse/errors"
)

func productFields() map[string]any {
	return map[string]any{
		"id":          map[string]any{"type": "integer"},
		"name":        map[string]any{"type": "char", "string": "Name", "required": true},
		"price":       map[string]any{"type": "float"},
		"category_id": map[string]any{"type": "many2one", "relation": "product.category"},
		"line_ids":    map[string]any{"type": "one2many", "relation": "product.line"},
		"tag_ids":     map[string]any{"type": "many2many", "relation": "product.tag", "readonly": false},
		"date_start":  map[string]any{"type": "date"},
		"write_date":  map[string]any{"type": "datetime", "readonly": true},
		"image":       map[string]any{"type": "binary"},
	}
}

func TestParse(t *testing.T) {
	s, err := Parse("product.product", productFields())
	require.NoError(t, err)

	assert.Equal(t, 8, s.Len())
	_, hasID := s.Field("id")
	assert.False(t, hasID)
	assert.Equal(t, []string{"category_id", "date_start", "image", "line_ids", "name", "price", "tag_ids", "write_date"}, s.Names())

	name, _ := s.Field("name")
	assert.Equal(t, KindDefault, name.Kind)
	assert.True(t, name.Required)
	assert.Equal(t, "Name", name.Label)

	cat, _ := s.Field("category_id")
	assert.Equal(t, KindMany2One, cat.Kind)
	assert.Equal(t, "product.category", cat.Relation)

	wd, _ := s.Field("write_date")
	assert.Equal(t, KindDateTime, wd.Kind)
	assert.True(t, wd.Readonly)

	img, _ := s.Field("image")
	assert.Equal(t, KindDefault, img.Kind)
}

func TestParse_MissingRelation(t *testing.T) {
	_, err := Parse("x", map[string]any{"partner_id": map[string]any{"type": "many2one"}})
	assert.True(t, errors.IsErrorCode(err, errors.ErrCodeProtocol))
}

func TestKind(t *testing.T) {
	assert.Equal(t, KindFloat, KindOf("float"))
	assert.Equal(t, KindDefault, KindOf("selection"))
	assert.True(t, KindOne2Many.IsCollection())
	assert.True(t, KindMany2One.IsRelational())
	assert.False(t, KindMany2One.IsCollection())
	assert.Equal(t, "many2many", KindMany2Many.String())
}
