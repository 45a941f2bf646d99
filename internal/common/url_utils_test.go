package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAbsoluteURL(t *testing.T) {
	cases := map[string]bool{
		"https://example.com/a":  true,
		"http://example.com":     true,
		"":                       false,
		"   ":                    false,
		"/relative/path":         false,
		"example.com/article":    false,
		"ftp://example.com/file": false,
		"https://":               false,
	}
	for input, want := range cases {
		assert.Equal(t, want, IsAbsoluteURL(input), "input %q", input)
	}
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "https://news.example.com", BaseURL("https://news.example.com/2024/story?x=1"))
	assert.Equal(t, "http://localhost:8080", BaseURL("http://localhost:8080/path"))
	assert.Equal(t, "", BaseURL("not a url"))
}

func TestDomainVariantURLs(t *testing.T) {
	want := []string{
		"https://example.com",
		"https://www.example.com",
		"http://example.com",
		"http://www.example.com",
	}
	assert.Equal(t, want, DomainVariantURLs("www.example.com"))
	assert.Equal(t, want, DomainVariantURLs(".Example.com"))
	assert.Nil(t, DomainVariantURLs("  "))
}
