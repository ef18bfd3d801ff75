package c2c

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys double as the English text.
const (
	msgSettingRequired     = "%s is required"
	msgValidationFailed    = "Validation failed"
	msgCommunicationFailed = "Communication with the service failed"
	msgUnknownService      = "Unknown integration service %q"
)

var messages = func() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, translations := range map[string]map[language.Tag]string{
		msgSettingRequired: {
			language.English: "%s is required",
			language.German:  "%s ist erforderlich",
		},
		msgValidationFailed: {
			language.English: "Validation failed",
			language.German:  "Validierung fehlgeschlagen",
		},
		msgCommunicationFailed: {
			language.English: "Communication with the service failed",
			language.German:  "Kommunikation mit dem Dienst fehlgeschlagen",
		},
		msgUnknownService: {
			language.English: "Unknown integration service %q",
			language.German:  "Unbekannter Integrationsdienst %q",
		},
	} {
		for tag, msg := range translations {
			if err := b.SetString(tag, key, msg); err != nil {
				panic(err)
			}
		}
	}
	return b
}()

var (
	supportedLanguages = messages.Languages()
	messageMatcher     = language.NewMatcher(supportedLanguages)
)

// printerFor returns a printer for the closest supported language to locale.
// Unsupported locales get English.
func printerFor(locale language.Tag) *message.Printer {
	_, idx, conf := messageMatcher.Match(locale)
	tag := language.English
	if conf != language.No {
		tag = supportedLanguages[idx]
	}
	return message.NewPrinter(tag, message.Catalog(messages))
}
