package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, SuccessResponse("created", map[string]int{"seat": 3}))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "created", body.Message)
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Seat int `json:"seat"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"seat": 4}`))
	require.NoError(t, DecodeJSON(r, &v))
	assert.Equal(t, 4, v.Seat)

	empty := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.NoError(t, DecodeJSON(empty, &v))

	unknown := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"row": 1}`))
	assert.Error(t, DecodeJSON(unknown, &v))
}
