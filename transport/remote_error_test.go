package transport

import (
	stdErrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oebrowse/errors"
)

func TestNewRemoteError_TypeTag(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		wantType string
	}{
		{"separator", &Exception{Name: "Exception", Args: []any{"warning -- Access\n\nNope"}}, "warning"},
		{"no separator", &Exception{Name: "KeyError", Args: []any{"missing"}}, "missing"},
		{"multi-line first line only", &Exception{Name: "Exception", Args: []any{"a -- b\nc -- d"}}, "a"},
		{"no args", &Exception{Name: "Exception"}, "error"},
		{"not an exception", int64(42), "error"},
		{"bare string", "ValidateError -- bad", "ValidateError"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re := NewRemoteError(tt.value, "trace")
			assert.Equal(t, tt.wantType, re.Type)
		})
	}
}

func TestRemoteError_Message(t *testing.T) {
	re := NewRemoteError(&Exception{Name: "Exception"}, "Traceback: é")
	assert.Equal(t, "Traceback: &#233;", re.Error())

	re = NewRemoteError(&Exception{Name: "Exception", Args: []any{"warning -- x"}}, "tb")
	assert.Equal(t, "warning -- x", re.Error())
}

func TestRemoteError_AsAppError(t *testing.T) {
	re := NewRemoteError(&Exception{Name: "Exception", Args: []any{"warning -- x"}}, "tb")
	err := error(re.AsAppError("write"))

	assert.True(t, errors.IsRemote(err))
	var got *RemoteError
	require.True(t, stdErrors.As(err, &got))
	assert.Same(t, re, got)
	method, _ := errors.DetailOf(err, "method")
	assert.Equal(t, "write", method)
}

func TestException_Text(t *testing.T) {
	assert.Equal(t, "('a', 2)", (&Exception{Args: []any{"a", int64(2)}}).Text())
	assert.Equal(t, "None", (&Exception{Args: []any{nil}}).Text())
}
