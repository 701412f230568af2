// Package slugutil builds URL slugs for posts created by the importer.
// Titles are mostly Croatian, so the local letters are transliterated to the
// conventional ASCII digraphs before the generic slugifier runs; unidecode
// alone would turn đ into "d" instead of "dj".
package slugutil

import (
	"fmt"
	"strings"

	"github.com/gosimple/slug"
)

var croatian = strings.NewReplacer(
	"đ", "dj", "Đ", "dj",
	"č", "c", "Č", "c",
	"ć", "c", "Ć", "c",
	"š", "s", "Š", "s",
	"ž", "z", "Ž", "z",
)

// Make returns the slug for a title: Croatian transliteration, diacritic
// stripping, lower-case, non-alphanumerics collapsed to single hyphens.
func Make(title string) string {
	return slug.Make(croatian.Replace(title))
}

// Unique returns base if it is free, otherwise base-1, base-2, … until taken
// reports an unused slug.
func Unique(base string, taken func(string) (bool, error)) (string, error) {
	inUse, err := taken(base)
	if err != nil {
		return "", fmt.Errorf("check slug %q: %w", base, err)
	}
	if !inUse {
		return base, nil
	}

	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		inUse, err := taken(candidate)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", candidate, err)
		}
		if !inUse {
			return candidate, nil
		}
	}
}
