// Package i18n provides the translation catalog and locale resolution for
// client-facing messages. Catalogs are embedded at build time and loaded once;
// the resulting Translator is immutable and safe for concurrent use.
package i18n

import (
	"embed"
	"fmt"
	"strings"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

//go:embed locales/*.toml
var localeFS embed.FS

// DefaultLocale is the fallback for unknown or missing locales.
const DefaultLocale = "en"

// catalogLocales are the locales with a message catalog. Other supported
// codes are accepted as a user preference but render from the default
// catalog.
var catalogLocales = []string{"en", "tr"}

// supportedLocales is the set of locale codes accepted as a user preference.
var supportedLocales = map[string]bool{
	"en": true, "tr": true, "es": true, "fr": true,
	"de": true, "ja": true, "ko": true, "zh": true,
}

// IsSupported reports whether code is a recognized locale code.
func IsSupported(code string) bool {
	return supportedLocales[code]
}

// Translator resolves message keys against the embedded catalogs.
type Translator struct {
	bundle *goi18n.Bundle
}

// New loads the embedded catalogs. Failing to parse an embedded file is a
// build defect, not a runtime condition, so it is returned as an error for
// main to treat as fatal.
func New() (*Translator, error) {
	bundle := goi18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, locale := range catalogLocales {
		path := fmt.Sprintf("locales/%s.toml", locale)
		if _, err := bundle.LoadMessageFileFS(localeFS, path); err != nil {
			return nil, fmt.Errorf("failed to load locale file %s: %w", path, err)
		}
	}

	return &Translator{bundle: bundle}, nil
}

// Translate returns the message for key in the requested locale, falling
// back to the default locale and finally to the raw key when no catalog
// entry exists at all.
func (t *Translator) Translate(locale, key string) string {
	localizer := goi18n.NewLocalizer(t.bundle, locale, DefaultLocale)
	msg, err := localizer.Localize(&goi18n.LocalizeConfig{MessageID: key})
	if err != nil {
		return key
	}
	return msg
}

// ResolveLocale maps an Accept-Language header value onto a supported locale
// code. Only the first listed language is considered; region subtags are
// dropped. Anything unrecognized resolves to the default.
func ResolveLocale(acceptLanguage string) string {
	if acceptLanguage == "" {
		return DefaultLocale
	}
	first := strings.TrimSpace(strings.Split(acceptLanguage, ",")[0])
	base := strings.Split(first, "-")[0]
	// Strip any ;q= weight attached to a lone language tag.
	base = strings.TrimSpace(strings.Split(base, ";")[0])
	base = strings.ToLower(base)
	if IsSupported(base) {
		return base
	}
	return DefaultLocale
}
