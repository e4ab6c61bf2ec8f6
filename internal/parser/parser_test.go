package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLinks(t *testing.T) {
	html := `
		<div class="results">
			<a href="/product/123?from=search">Кабель ВВГнг 3x2.5</a>
			<a href="/product/456?from=search" title="Светильник LED"></a>
			<a href="/product/123?page=2">Кабель ВВГнг 3x2.5 дубль</a>
			<a href="/help/contacts">Контакты</a>
		</div>`

	links, err := ExtractLinks(html, []string{`a[href*="/product/"]`}, "/product/")
	require.NoError(t, err)
	require.Len(t, links, 2)

	assert.Equal(t, "/product/123", links[0].URL)
	assert.Equal(t, "Кабель ВВГнг 3x2.5", links[0].Title)

	// Empty text falls back to the title attribute.
	assert.Equal(t, "/product/456", links[1].URL)
	assert.Equal(t, "Светильник LED", links[1].Title)
}

func TestExtractLinksSelectorOrder(t *testing.T) {
	html := `
		<a class="primary" href="/product/1">Первый</a>
		<a class="secondary" href="/product/2">Второй</a>`

	// The first selector with matches wins; later strategies never run.
	links, err := ExtractLinks(html, []string{"a.primary", "a.secondary"}, "/product/")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "/product/1", links[0].URL)
}

func TestExtractLinksNoMatches(t *testing.T) {
	links, err := ExtractLinks("<div>пусто</div>", []string{"a"}, "/product/")
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestExtractPriceText(t *testing.T) {
	html := `
		<div class="offer">
			<span class="old-price"></span>
			<span class="price">42 512 ₽</span>
			<span class="note">в наличии</span>
		</div>`

	got, ok := ExtractPriceText(html, []string{"span.price"}, "₽")
	require.True(t, ok)
	assert.Equal(t, "42 512 ₽", got)
}

func TestExtractPriceTextRequiresCurrency(t *testing.T) {
	html := `<span class="price">по запросу</span>`

	_, ok := ExtractPriceText(html, []string{"span.price"}, "₽")
	assert.False(t, ok)
}

func TestStripQuery(t *testing.T) {
	assert.Equal(t, "/product/1", StripQuery("/product/1?from=search&page=2"))
	assert.Equal(t, "/product/1", StripQuery("/product/1"))
	assert.Equal(t, "", StripQuery("?only=query"))
}
