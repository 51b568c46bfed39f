package utils

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchCacheExpiry(t *testing.T) {
	c := NewSearchCache[[]int](2, 50*time.Millisecond)

	c.Set("a", []int{1})
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, []int{1}, v)

	time.Sleep(80 * time.Millisecond)
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestSearchCacheEvictsLeastRecent(t *testing.T) {
	c := NewSearchCache[string](2, time.Minute)
	c.Set("a", "A")
	c.Set("b", "B")
	c.Get("a")
	c.Set("c", "C")

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
}

func TestDecodeJSONGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(`{"results":[{"id":1}]}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	resp := &http.Response{
		Header: http.Header{"Content-Encoding": []string{"gzip"}},
		Body:   io.NopCloser(&buf),
	}
	var out struct {
		Results []struct {
			ID int `json:"id"`
		} `json:"results"`
	}
	require.NoError(t, DecodeJSON(resp, &out))
	assert.Equal(t, 1, out.Results[0].ID)
}

func TestDecodeJSONInvalid(t *testing.T) {
	resp := &http.Response{Header: http.Header{}, Body: io.NopCloser(bytes.NewBufferString("<html>"))}
	var out map[string]interface{}
	assert.Error(t, DecodeJSON(resp, &out))
}

func TestHTTPClientSetsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := NewHTTPClient(nil).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestResponseEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Conflict(c, "session not attached", gin.H{"reload": true})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"code":409,"message":"session not attached","data":{"reload":true},"success":false}`, w.Body.String())
}
