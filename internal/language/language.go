package language

import "strings"

// known is a language the transcriber is commonly run with. aliases holds the
// other spellings accepted by the language command: ISO 639-2 codes and the
// English word.
type known struct {
	code    string
	name    string
	aliases []string
}

var table = []known{
	{"en", "English", []string{"eng", "english"}},
	{"de", "German", []string{"deu", "ger", "german", "deutsch"}},
	{"fr", "French", []string{"fra", "fre", "french"}},
	{"es", "Spanish", []string{"spa", "spanish"}},
	{"it", "Italian", []string{"ita", "italian"}},
	{"nl", "Dutch", []string{"nld", "dut", "dutch"}},
	{"pl", "Polish", []string{"pol", "polish"}},
	{"pt", "Portuguese", []string{"por", "portuguese"}},
	{"sv", "Swedish", []string{"swe", "swedish"}},
	{"da", "Danish", []string{"dan", "danish"}},
	{"no", "Norwegian", []string{"nor", "norwegian"}},
	{"fi", "Finnish", []string{"fin", "finnish"}},
	{"ru", "Russian", []string{"rus", "russian"}},
	{"ja", "Japanese", []string{"jpn", "japanese"}},
	{"zh", "Chinese", []string{"zho", "chi", "chinese"}},
}

var spellings = func() map[string]*known {
	m := make(map[string]*known, len(table)*4)
	for i := range table {
		k := &table[i]
		m[k.code] = k
		for _, alias := range k.aliases {
			m[alias] = k
		}
	}
	return m
}()

func find(value string) *known {
	return spellings[strings.ToLower(strings.TrimSpace(value))]
}

// Name returns the English name of a transcription language code, or "" for
// auto and for codes outside the built-in table.
func Name(code string) string {
	if k := find(code); k != nil {
		return k.name
	}
	return ""
}
