/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package i18n

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		accept string
		want   language.Tag
	}{
		{accept: "", want: language.Korean},
		{accept: "ko-KR,ko;q=0.9", want: language.Korean},
		{accept: "en-US,en;q=0.9", want: language.English},
		{accept: "en-GB", want: language.English},
		{accept: "fr-FR", want: language.Korean},
		{accept: ";;;garbage", want: language.Korean},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Match(tt.accept), tt.accept)
	}
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?lang=en", nil)
	r.Header.Set("Accept-Language", "ko")
	assert.Equal(t, language.English, FromRequest(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept-Language", "en")
	assert.Equal(t, language.English, FromRequest(r))

	assert.Equal(t, language.Korean, FromRequest(nil))
}

func TestCatalogComplete(t *testing.T) {
	for key := range catalog {
		for _, tag := range Supported() {
			got := Message(tag, key)
			assert.NotEqual(t, key, got, "%s missing for %s", key, tag)
			assert.NotEmpty(t, got)
		}
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "2글자 이상의 한글 단어를 입력해주세요.", Message(language.Korean, WordTooShort))
	assert.Equal(t, "Authentication failed.", Message(language.English, AdminLoginFailed))
}
