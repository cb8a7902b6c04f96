// Package locale supplies the pre-translated marker strings the renderers
// splice into their output. The renderers treat them as opaque markup.
package locale

import (
	"strings"

	"golang.org/x/text/language"
)

// Markers are the localized in-band signals.
type Markers struct {
	// More is appended to a diff column that ran out of budget.
	More string
	// WhitespaceOnly replaces a diff column whose change is only whitespace.
	WhitespaceOnly string
	// Ellipsis marks forced truncation.
	Ellipsis string
	// BrokenInfobox is shown when infobox fields contained unresolved links.
	BrokenInfobox string
}

var supported = []language.Tag{
	language.English,
	language.German,
	language.French,
	language.Spanish,
	language.Polish,
	language.BrazilianPortuguese,
	language.Russian,
	language.Ukrainian,
	language.Japanese,
	language.SimplifiedChinese,
}

var catalog = map[language.Tag]Markers{
	language.English: {
		More:           "\n*…and more*",
		WhitespaceOnly: "__Only whitespace changes__",
		Ellipsis:       "…",
		BrokenInfobox:  "Some infobox content could not be rendered.",
	},
	language.German: {
		More:           "\n*…und mehr*",
		WhitespaceOnly: "__Nur Leerzeichenänderungen__",
		Ellipsis:       "…",
		BrokenInfobox:  "Einige Infobox-Inhalte konnten nicht dargestellt werden.",
	},
	language.French: {
		More:           "\n*…et plus*",
		WhitespaceOnly: "__Uniquement des modifications d’espaces__",
		Ellipsis:       "…",
		BrokenInfobox:  "Une partie de l’infobox n’a pas pu être affichée.",
	},
	language.Spanish: {
		More:           "\n*…y más*",
		WhitespaceOnly: "__Solo cambios de espacios__",
		Ellipsis:       "…",
		BrokenInfobox:  "Parte del contenido de la ficha no se pudo mostrar.",
	},
	language.Polish: {
		More:           "\n*…i więcej*",
		WhitespaceOnly: "__Tylko zmiany białych znaków__",
		Ellipsis:       "…",
		BrokenInfobox:  "Części infoboksu nie udało się wyświetlić.",
	},
	language.BrazilianPortuguese: {
		More:           "\n*…e mais*",
		WhitespaceOnly: "__Apenas alterações de espaços__",
		Ellipsis:       "…",
		BrokenInfobox:  "Parte do conteúdo da infobox não pôde ser exibida.",
	},
	language.Russian: {
		More:           "\n*…и ещё*",
		WhitespaceOnly: "__Изменены только пробелы__",
		Ellipsis:       "…",
		BrokenInfobox:  "Часть содержимого карточки не удалось отобразить.",
	},
	language.Ukrainian: {
		More:           "\n*…і ще*",
		WhitespaceOnly: "__Змінено лише пробіли__",
		Ellipsis:       "…",
		BrokenInfobox:  "Частину вмісту картки не вдалося відобразити.",
	},
	language.Japanese: {
		More:           "\n*…その他*",
		WhitespaceOnly: "__空白のみの変更__",
		Ellipsis:       "…",
		BrokenInfobox:  "インフォボックスの一部を表示できませんでした。",
	},
	language.SimplifiedChinese: {
		More:           "\n*…及更多*",
		WhitespaceOnly: "__仅空白更改__",
		Ellipsis:       "…",
		BrokenInfobox:  "部分信息框内容无法显示。",
	},
}

var matcher = language.NewMatcher(supported)

// Default returns the English markers.
func Default() Markers {
	return catalog[language.English]
}

// For returns the markers for a BCP 47 tag or Accept-Language list, falling
// back to English when nothing matches.
func For(tag string) Markers {
	desired := parseDesired(tag)
	if len(desired) == 0 {
		return Default()
	}

	_, idx, confidence := matcher.Match(desired...)
	if confidence == language.No {
		return Default()
	}

	return catalog[supported[idx]]
}

// parseDesired parses an Accept-Language list. Entries whose tag does not
// parse are dropped so the rest of the list still counts.
func parseDesired(header string) []language.Tag {
	desired, _, err := language.ParseAcceptLanguage(header)
	if err == nil {
		return desired
	}

	kept := make([]string, 0, strings.Count(header, ",")+1)

	for _, entry := range strings.Split(header, ",") {
		name, _, _ := strings.Cut(entry, ";")
		if _, err := language.Parse(strings.TrimSpace(name)); err != nil {
			continue
		}

		kept = append(kept, entry)
	}

	desired, _, err = language.ParseAcceptLanguage(strings.Join(kept, ","))
	if err != nil {
		return nil
	}

	return desired
}

// Supported lists the catalog languages as BCP 47 strings.
func Supported() []string {
	tags := make([]string, len(supported))
	for i, t := range supported {
		tags[i] = t.String()
	}

	return tags
}
