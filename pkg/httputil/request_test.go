package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Title string `json:"title"`
}

func TestParseJSON(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"東京"}`))
		var req sampleRequest
		require.NoError(t, ParseJSON(r, &req))
		assert.Equal(t, "東京", req.Title)
	})

	t.Run("malformed", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":`))
		var req sampleRequest
		assert.Error(t, ParseJSON(r, &req))
	})

	t.Run("unknown field", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"titel":"x"}`))
		var req sampleRequest
		assert.Error(t, ParseJSON(r, &req))
	})
}

func TestParseJSONOrError(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`))
	w := httptest.NewRecorder()

	var req sampleRequest
	assert.False(t, ParseJSONOrError(w, r, &req))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParsePathInt64(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    int64
		wantErr bool
	}{
		{"valid", "42", 42, false},
		{"zero", "0", 0, true},
		{"negative", "-3", 0, true},
		{"not a number", "abc", 0, true},
		{"missing", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.value != "" {
				r = mux.SetURLVars(r, map[string]string{"id": tt.value})
			}
			got, err := ParsePathInt64(r, "id")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePathInt64OrError(t *testing.T) {
	r := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "x"})
	w := httptest.NewRecorder()

	_, ok := ParsePathInt64OrError(w, r, "id")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=10&offset=-1&bad=x", nil)

	v, err := ParseQueryInt(r, "limit", 20)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	v, err = ParseQueryInt(r, "missing", 20)
	require.NoError(t, err)
	assert.Equal(t, 20, v)

	_, err = ParseQueryInt(r, "offset", 0)
	assert.Error(t, err)

	_, err = ParseQueryInt(r, "bad", 0)
	assert.Error(t, err)
}

func TestValidateAll(t *testing.T) {
	w := httptest.NewRecorder()
	ok := ValidateAll(w, RequireNonEmpty("a", "name"), RequireNonEmpty("", "title"))
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "title is required")

	w = httptest.NewRecorder()
	assert.True(t, ValidateAll(w, RequireNonEmpty("a", "name")))
}
