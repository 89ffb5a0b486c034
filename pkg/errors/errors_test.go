package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CarriesCodeAndFields(t *testing.T) {
	err := New(CodeNotFound, "item not found", FieldItemID("a1"))
	require.Error(t, err)
	assert.Equal(t, CodeNotFound, CodeOf(err))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsInvalidArgument(err))
	assert.Equal(t, "a1", FieldsOf(err)["item_id"])
}

func TestWrap_InnerCodeWins(t *testing.T) {
	inner := New(CodeEmbeddingFailure, "model unavailable")
	outer := Wrap(inner, CodeServerInternalFailure, "add item")
	assert.True(t, IsEmbeddingFailure(outer))
}

func TestWrap_PlainError(t *testing.T) {
	base := stderrors.New("disk full")
	err := Wrap(base, CodePersistenceFailure, "save item")
	assert.True(t, IsPersistenceFailure(err))
	assert.Contains(t, err.Error(), "disk full")
}

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeNotFound, "x"))
	assert.NoError(t, Wrapf(nil, CodeNotFound, "x %d", 1))
}

func TestCodeOf_Uncoded(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(stderrors.New("plain")))
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.False(t, HasCode(nil, CodeNotFound))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid argument", New(CodeInvalidArgument, "x"), http.StatusBadRequest},
		{"not found", New(CodeNotFound, "x"), http.StatusNotFound},
		{"dimension mismatch", New(CodeDimensionMismatch, "x"), http.StatusUnprocessableEntity},
		{"embedding failure", New(CodeEmbeddingFailure, "x"), http.StatusBadGateway},
		{"persistence failure", New(CodePersistenceFailure, "x"), http.StatusInternalServerError},
		{"plain", stderrors.New("x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestFromHTTPStatus(t *testing.T) {
	assert.True(t, IsNotFound(FromHTTPStatus(http.StatusNotFound, "", "gone")))
	assert.True(t, IsDimensionMismatch(FromHTTPStatus(http.StatusBadRequest, CodeDimensionMismatch, "dims")))
	assert.True(t, HasCode(FromHTTPStatus(http.StatusTeapot, "", "?"), CodeClientRequestFailure))
}
