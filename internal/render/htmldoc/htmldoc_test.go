package htmldoc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listing = `<html><body>
<div class="grid">
  <div class="card"><span class="name">Milk</span><span class="price">24,95 TL</span><img data-src="/milk.png"></div>
  <div class="card"><span class="name">Bread</span><span class="price">12,50 TL</span></div>
</div>
</body></html>`

func TestDocument_Find(t *testing.T) {
	doc, err := FromString(listing)
	require.NoError(t, err)

	cards, err := doc.FindAll(".card")
	require.NoError(t, err)
	require.Len(t, cards, 2)

	name, ok, err := cards[0].FindFirst(".name")
	require.NoError(t, err)
	require.True(t, ok)
	text, err := name.Text()
	require.NoError(t, err)
	assert.Equal(t, "Milk", text)

	img, ok, err := cards[0].FindFirst("img")
	require.NoError(t, err)
	require.True(t, ok)
	_, hasSrc, _ := img.Attribute("src")
	assert.False(t, hasSrc)
	dataSrc, hasDataSrc, _ := img.Attribute("data-src")
	assert.True(t, hasDataSrc)
	assert.Equal(t, "/milk.png", dataSrc)

	_, ok, err = cards[1].FindFirst("img")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = doc.FindAll("div[")
	assert.Error(t, err)
}

func TestDocument_AwaitAny(t *testing.T) {
	doc, err := FromString(listing)
	require.NoError(t, err)

	sel, ok := doc.AwaitAny(context.Background(), []string{".missing", ".card"}, time.Second)
	assert.True(t, ok)
	assert.Equal(t, ".card", sel)

	_, ok = doc.AwaitAny(context.Background(), []string{".missing"}, time.Second)
	assert.False(t, ok)
}

func TestRenderer_Open(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(listing))
	}))
	defer server.Close()

	r := New(nil)

	doc, err := r.Open(context.Background(), server.URL+"/search?q=milk")
	require.NoError(t, err)
	defer doc.Close()

	cards, err := doc.FindAll(".card")
	require.NoError(t, err)
	assert.Len(t, cards, 2)

	_, err = r.Open(context.Background(), server.URL+"/missing")
	assert.Error(t, err)
}
