package execution

import (
	"code-mentor/errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var extensions = map[string]Language{
	".py":   Python,
	".java": Java,
	".c":    C,
	".cpp":  CPP,
	".cc":   CPP,
	".cxx":  CPP,
}

// LanguageForFile infers the language from the file extension.
func LanguageForFile(path string) (Language, bool) {
	lang, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return lang, ok
}

// Extension is the file extension used when downloading a buffer.
func Extension(lang Language) string {
	for ext, l := range extensions {
		if l == lang.Normalize() && ext != ".cc" && ext != ".cxx" {
			return ext
		}
	}
	return ".txt"
}

// LoadSource reads an uploaded source file into a Request.
// The content must be text; lang overrides the extension when set.
func LoadSource(path string, lang Language) (Request, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return Request{}, err
	}
	if !isText(mtype) {
		return Request{}, fmt.Errorf("%w: %s is %s", errors.ErrUnsupportedSource, path, mtype.String())
	}

	if lang == "" {
		inferred, ok := LanguageForFile(path)
		if !ok {
			return Request{}, fmt.Errorf("%w: %s", errors.ErrUnknownLanguage, path)
		}
		lang = inferred
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Request{}, err
	}
	return Request{Source: string(data), Language: lang}, nil
}

func isText(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
