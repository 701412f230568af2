package domain

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

const (
	minBodyLength    = 100
	minExcerptLength = 20
)

// ErrArticleInvalid wraps article validation failures so callers can treat
// them as hard, non-retryable errors for the current content.
var ErrArticleInvalid = errors.New("article invalid")

// ExtractedArticle is the best-effort result of pulling readable content out
// of an arbitrary HTML page.
type ExtractedArticle struct {
	Title       string
	ContentHTML string
	Excerpt     string
	ImageURL    string
	Byline      string
}

// TranslatedArticle is the transient output of the translation step. It is
// folded into a Post and then discarded.
type TranslatedArticle struct {
	Title           string
	ContentHTML     string
	Excerpt         string
	MetaTitle       string
	MetaDescription string
	Keywords        []string
	TokensUsed      int
}

// Validate enforces the minimum content requirements before a post may be
// created. Failures are terminal for the current translation attempt.
func (a *TranslatedArticle) Validate() error {
	if a.Title == "" {
		return fmt.Errorf("%w: empty title", ErrArticleInvalid)
	}
	if n := utf8.RuneCountInString(a.ContentHTML); n < minBodyLength {
		return fmt.Errorf("%w: body too short (%d chars, need %d)", ErrArticleInvalid, n, minBodyLength)
	}
	if n := utf8.RuneCountInString(a.Excerpt); n < minExcerptLength {
		return fmt.Errorf("%w: excerpt too short (%d chars, need %d)", ErrArticleInvalid, n, minExcerptLength)
	}
	return nil
}
