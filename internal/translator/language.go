package translator

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"pdf-translator/internal/types"
)

// NormalizeTargetLang parses a BCP 47 style code and returns it in the
// upper-case form DeepL expects: "es" -> "ES", "en-gb" -> "EN-GB",
// "zh-hans" -> "ZH-HANS". Only subtags given explicitly are kept.
func NormalizeTargetLang(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", types.NewAppError(types.ErrInvalidInput, "target language is required", nil)
	}

	tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return "", types.NewAppErrorWithDetails(types.ErrInvalidInput, "invalid target language", code, err)
	}

	base, _ := tag.Base()
	out := strings.ToUpper(base.String())
	if script, conf := tag.Script(); conf == language.Exact {
		out += "-" + strings.ToUpper(script.String())
	}
	if region, conf := tag.Region(); conf == language.Exact {
		out += "-" + region.String()
	}
	return out, nil
}

// LanguageName returns the English display name of a language code, or the
// code itself when it cannot be parsed.
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}
