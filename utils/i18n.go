package utils

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// SupportedLanguages lists the locales the UI ships translations for.
// The first entry is the fallback.
var SupportedLanguages = []string{"en", "ja"}

var (
	// Bundle holds every loaded message catalog.
	Bundle *i18n.Bundle
	// Localizer resolves messages in the fallback language. Handlers
	// prefer the per-request localizer set by the locale middleware.
	Localizer *i18n.Localizer
)

// InitI18n loads the locale catalogs and sets up the fallback localizer.
// A missing catalog is logged and skipped so a partial deployment still
// serves English.
func InitI18n() error {
	Bundle = i18n.NewBundle(language.English)
	Bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	loaded := 0
	for _, lang := range SupportedLanguages {
		path := fmt.Sprintf("locales/active.%s.toml", lang)
		if _, err := Bundle.LoadMessageFile(path); err != nil {
			Log.Warn("Failed to load locale %s: %v", lang, err)
			continue
		}
		loaded++
	}

	Localizer = i18n.NewLocalizer(Bundle, language.English.String())
	Log.Info("i18n initialized with %d of %d locales", loaded, len(SupportedLanguages))
	return nil
}

// IsSupportedLanguage reports whether lang has a shipped catalog.
func IsSupportedLanguage(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// GetLocalizer returns a localizer for lang, falling back to English
// for unknown or empty values.
func GetLocalizer(lang string) *i18n.Localizer {
	if !IsSupportedLanguage(lang) {
		lang = SupportedLanguages[0]
	}
	return i18n.NewLocalizer(Bundle, lang)
}

// T resolves messageID through the given localizer. Unknown IDs and a
// nil localizer both fall back to the ID itself so callers always get
// something renderable.
func T(localizer *i18n.Localizer, messageID string) string {
	if localizer == nil {
		return messageID
	}
	msg, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: messageID})
	if err != nil {
		Log.Debug("Translation missing for '%s': %v", messageID, err)
		return messageID
	}
	return msg
}

// TWithData resolves messageID with template data for interpolated
// messages such as attachment size errors.
func TWithData(localizer *i18n.Localizer, messageID string, data map[string]interface{}) string {
	if localizer == nil {
		return messageID
	}
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		Log.Debug("Translation missing for '%s': %v", messageID, err)
		return messageID
	}
	return msg
}
