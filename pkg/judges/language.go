package judges

import (
	"path/filepath"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/text/cases"
)

// LanguageMapping maps file extensions and language names to
// judge-specific language codes.
//
// Mapping is immutable after construction and safe for concurrent use.
type LanguageMapping struct {
	codes  map[string]string
	labels map[string]string
}

// NewLanguageMapping creates mapping from keys (extensions with leading
// dot or language names) to codes and from codes to display labels.
//
// Display labels are registered as language names unless the folded
// label already has a code.
func NewLanguageMapping(codes, labels map[string]string) *LanguageMapping {
	m := LanguageMapping{
		codes:  make(map[string]string, len(codes)+len(labels)),
		labels: make(map[string]string, len(labels)),
	}
	for key, code := range codes {
		m.codes[foldKey(key)] = code
	}
	for code, label := range labels {
		m.labels[code] = label
		if _, ok := m.codes[foldKey(label)]; !ok {
			m.codes[foldKey(label)] = code
		}
	}
	return &m
}

// Resolve returns language code for the file.
//
// Explicit language takes precedence over file extension.
func (m *LanguageMapping) Resolve(file, language string) (string, error) {
	if language != "" {
		return m.Code(language)
	}
	return m.Code(FileExtension(file))
}

// Code returns code for extension or language name.
func (m *LanguageMapping) Code(key string) (string, error) {
	if code, ok := m.codes[foldKey(key)]; ok {
		return code, nil
	}
	return "", &LanguageError{Key: key}
}

// Label returns display label for language code.
func (m *LanguageMapping) Label(code string) (string, bool) {
	label, ok := m.labels[code]
	return label, ok
}

// Names returns sorted list of all registered keys.
func (m *LanguageMapping) Names() []string {
	names := maps.Keys(m.codes)
	slices.Sort(names)
	return names
}

// FileExtension returns extension of file name starting from the first dot.
//
// For "main.test.cpp" it returns ".test.cpp".
func FileExtension(file string) string {
	if file == "" {
		return ""
	}
	base := filepath.Base(file)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		return base[i:]
	}
	return ""
}

func foldKey(key string) string {
	return cases.Fold().String(strings.TrimSpace(key))
}
