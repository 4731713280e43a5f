package speech

import (
	"fmt"

	"golang.org/x/text/language"
)

// Language is a selectable recognition language.
type Language struct {
	Name string       `json:"name"`
	Code string       `json:"code"`
	Tag  language.Tag `json:"-"`
}

// Base returns the ISO 639-1 code, e.g. "hi" for hi-IN.
func (l Language) Base() string {
	b, _ := l.Tag.Base()
	return b.String()
}

var indicLanguages = []Language{
	{Name: "English (India)", Code: "en-IN"},
	{Name: "Hindi (हिन्दी)", Code: "hi-IN"},
	{Name: "Bengali (বাংলা)", Code: "bn-IN"},
	{Name: "Gujarati (ગુજરાતી)", Code: "gu-IN"},
	{Name: "Kannada (ಕನ್ನಡ)", Code: "kn-IN"},
	{Name: "Malayalam (മലയാളം)", Code: "ml-IN"},
	{Name: "Marathi (मराठी)", Code: "mr-IN"},
	{Name: "Punjabi (ਪੰਜਾਬੀ)", Code: "pa-IN"},
	{Name: "Tamil (தமிழ்)", Code: "ta-IN"},
	{Name: "Telugu (తెలుగు)", Code: "te-IN"},
	{Name: "Urdu (India) (اُردُو)", Code: "ur-IN"},
}

func init() {
	for i := range indicLanguages {
		indicLanguages[i].Tag = language.MustParse(indicLanguages[i].Code)
	}
}

// Languages returns the selectable languages; the first is the default.
func Languages() []Language {
	out := make([]Language, len(indicLanguages))
	copy(out, indicLanguages)
	return out
}

// LookupLanguage resolves a BCP-47 tag to a supported language. An empty
// code selects the default.
func LookupLanguage(code string) (Language, error) {
	if code == "" {
		return indicLanguages[0], nil
	}
	tag, err := language.Parse(code)
	if err != nil {
		return Language{}, fmt.Errorf("invalid language tag %q: %w", code, err)
	}
	for _, l := range indicLanguages {
		if l.Tag == tag {
			return l, nil
		}
	}
	return Language{}, fmt.Errorf("unsupported language %q", code)
}
