package workspace

import (
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	berrors "github.com/alphauslabs/verticalbuilder/internal/errors"
)

// knownTemplates are the template keys this builder can assemble.
var knownTemplates = []string{"gymnastics"}

// KnownTemplates returns the supported template keys in order.
func KnownTemplates() []string {
	out := slices.Clone(knownTemplates)
	sort.Strings(out)
	return out
}

// ResolveTemplate returns the bundle directory for key under themesRoot. It
// fails with an unsupported error when the key is unknown or the bundle is
// not installed.
func ResolveTemplate(themesRoot, key string) (string, error) {
	if !slices.Contains(knownTemplates, key) {
		return "", berrors.NewErrorf(berrors.CategoryUnsupported,
			"Unsupported templateKey=%s. Expected %s.", key, strings.Join(KnownTemplates(), ", ")).
			WithContext("template_key", key).
			Build()
	}
	dir := filepath.Join(themesRoot, key)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", berrors.NewErrorf(berrors.CategoryUnsupported,
			"templateKey=%s is not installed under %s", key, themesRoot).
			WithContext("template_key", key).
			Build()
	}
	return dir, nil
}
