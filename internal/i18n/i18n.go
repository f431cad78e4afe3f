/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package i18n localizes the user-facing error strings of the HTTP API.
// Korean is the default; English is offered to browsers that prefer it.
package i18n

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// LangParam overrides Accept-Language when present in the query string.
const LangParam = "lang"

// Message keys.
const (
	WordEmpty          = "word.empty"
	WordTooShort       = "word.too_short"
	WordWrongScript    = "word.wrong_script"
	GuessFailed        = "guess.failed"
	ListFailed         = "list.failed"
	NoActiveWord       = "word.none_active"
	RevealFailed       = "reveal.failed"
	RevealGate         = "reveal.gate"
	AdminUnauthorized  = "admin.unauthorized"
	AdminInvalidToken  = "admin.invalid_token"
	AdminLoginFailed   = "admin.login_failed"
	AdminMissingFields = "admin.missing_credentials"
	AdminWordFailed    = "admin.word_failed"
	RequestInvalid     = "request.invalid"
)

var supported = []language.Tag{
	language.Korean,
	language.English,
}

var matcher = language.NewMatcher(supported)

var catalog = map[string]map[language.Tag]string{
	WordEmpty: {
		language.Korean:  "단어를 입력해주세요.",
		language.English: "Please enter a word.",
	},
	WordTooShort: {
		language.Korean:  "2글자 이상의 한글 단어를 입력해주세요.",
		language.English: "Please enter a Korean word of at least two syllables.",
	},
	WordWrongScript: {
		language.Korean:  "한글 단어만 입력할 수 있습니다.",
		language.English: "Only Korean (Hangul) words are accepted.",
	},
	GuessFailed: {
		language.Korean:  "단어 확인에 실패했습니다.",
		language.English: "Failed to check the word.",
	},
	ListFailed: {
		language.Korean:  "단어 목록을 가져오는데 실패했습니다.",
		language.English: "Failed to load the word list.",
	},
	NoActiveWord: {
		language.Korean:  "오늘의 단어가 아직 정해지지 않았습니다.",
		language.English: "No word has been set for today.",
	},
	RevealFailed: {
		language.Korean:  "정답을 가져오는데 실패했습니다.",
		language.English: "Failed to load the answer.",
	},
	RevealGate: {
		language.Korean:  "보안 문자가 올바르지 않거나 만료되었습니다.",
		language.English: "The security code is wrong or has expired.",
	},
	AdminUnauthorized: {
		language.Korean:  "인증 토큰이 필요합니다.",
		language.English: "An authentication token is required.",
	},
	AdminInvalidToken: {
		language.Korean:  "유효하지 않은 토큰입니다.",
		language.English: "The token is invalid.",
	},
	AdminLoginFailed: {
		language.Korean:  "인증에 실패했습니다.",
		language.English: "Authentication failed.",
	},
	AdminMissingFields: {
		language.Korean:  "사용자명과 비밀번호를 입력해주세요.",
		language.English: "Please enter a username and password.",
	},
	AdminWordFailed: {
		language.Korean:  "오늘의 단어를 저장하지 못했습니다.",
		language.English: "Failed to save the daily word.",
	},
	RequestInvalid: {
		language.Korean:  "잘못된 요청입니다.",
		language.English: "Malformed request.",
	},
}

func init() {
	for key, translations := range catalog {
		for tag, text := range translations {
			if err := message.SetString(tag, key, text); err != nil {
				panic("i18n: " + err.Error())
			}
		}
	}
}

// Default returns the fallback language.
func Default() language.Tag {
	return language.Korean
}

// Supported returns the offered languages, default first.
func Supported() []language.Tag {
	tags := make([]language.Tag, len(supported))
	copy(tags, supported)

	return tags
}

// Match picks the supported language closest to an Accept-Language value.
func Match(accept string) language.Tag {
	accept = strings.TrimSpace(accept)
	if accept == "" {
		return Default()
	}

	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return Default()
	}

	_, idx, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return Default()
	}

	return supported[idx]
}

// FromRequest resolves the language for r from the lang query parameter,
// then Accept-Language.
func FromRequest(r *http.Request) language.Tag {
	if r == nil {
		return Default()
	}

	if lang := strings.TrimSpace(r.URL.Query().Get(LangParam)); lang != "" {
		if tag, err := language.Parse(lang); err == nil {
			_, idx, confidence := matcher.Match(tag)
			if confidence != language.No {
				return supported[idx]
			}
		}
	}

	return Match(r.Header.Get("Accept-Language"))
}

// Message returns the localized text for key.
func Message(tag language.Tag, key string) string {
	return message.NewPrinter(tag).Sprintf(key)
}
