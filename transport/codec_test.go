package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecs_RoundTrip(t *testing.T) {
	for _, name := range []string{"pickle", "msgpack"} {
		t.Run(name, func(t *testing.T) {
			codec, err := LookupCodec(name)
			require.NoError(t, err)

			in := []any{
				Tuple{"object", "execute", "demo", int64(1), "pw", "res.partner", "read"},
				map[string]any{"name": "Widget", "price": 9.99, "tags": []any{int64(1), int64(2)}, "parent_id": nil},
				true,
			}
			data, err := codec.Encode(in)
			require.NoError(t, err)

			out, err := codec.Decode(data)
			require.NoError(t, err)
			list, ok := AsList(out)
			require.True(t, ok)
			require.Len(t, list, 3)

			assert.Equal(t, []any{"object", "execute", "demo", int64(1), "pw", "res.partner", "read"}, list[0])
			values, ok := AsMap(list[1])
			require.True(t, ok)
			assert.Equal(t, "Widget", values["name"])
			assert.Equal(t, 9.99, values["price"])
			assert.Equal(t, []any{int64(1), int64(2)}, values["tags"])
			assert.Nil(t, values["parent_id"])
			assert.Equal(t, true, list[2])
		})
	}
}

func TestCodecs_Exception(t *testing.T) {
	for _, codec := range []Codec{Pickle, Msgpack} {
		t.Run(codec.Name(), func(t *testing.T) {
			exc := &Exception{Module: "exceptions", Name: "Exception", Args: []any{"warning -- AccessError\n\ndenied"}}
			data, err := codec.Encode([]any{exc, "Traceback"})
			require.NoError(t, err)

			out, err := codec.Decode(data)
			require.NoError(t, err)
			list, _ := AsList(out)
			require.Len(t, list, 2)
			got, ok := list[0].(*Exception)
			require.True(t, ok)
			assert.Equal(t, "exceptions.Exception", got.Class())
			assert.Equal(t, exc.Text(), got.Text())
		})
	}
}

// cPickle.dumps([Exception('warning -- x'), 'tb']) 的 protocol 0 输出
func TestPickle_DecodePythonException(t *testing.T) {
	data := []byte("(lp0\ncexceptions\nException\np1\n(S'warning -- x'\np2\ntp3\nRp4\naS'tb'\np5\na.")
	_, err := decodeResponse(Pickle, data, false)
	require.Error(t, err)
	re, ok := err.(*RemoteError)
	require.True(t, ok)
	assert.Equal(t, "warning", re.Type)
	assert.Equal(t, "tb", re.Traceback)
	assert.Equal(t, "warning -- x", re.Error())
}

func TestLookupCodec_Unknown(t *testing.T) {
	_, err := LookupCodec("xml")
	assert.Error(t, err)
	assert.Equal(t, []string{"msgpack", "pickle"}, AvailableCodecs())
}
