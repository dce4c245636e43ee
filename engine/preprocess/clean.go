// Package preprocess normalizes raw post text into embeddable text.
// All transforms are pure: same input and options always yield the same
// output. The stage order is fixed and load-bearing: retweet prefix, URLs,
// mentions, hashtags, emoji, whitespace, minimum length.
package preprocess

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tweetnest/tweetnest/engine/domain"
)

var (
	retweetPrefixRe  = regexp.MustCompile(`^RT @\w+:?\s*`)
	urlRe            = regexp.MustCompile(`https?://\S+`)
	leadingMentionRe = regexp.MustCompile(`^(?:@\w+\s+)+`)
	allMentionsRe    = regexp.MustCompile(`@\w+`)
	hashtagRe        = regexp.MustCompile(`#(\w+)`)
)

// Options is the fully-specified preprocessing configuration. Resolve it
// once at the boundary (DefaultOptions plus explicit overrides); call sites
// never merge partial options.
type Options struct {
	// RemoveRetweetPrefix strips a leading "RT @user:" attribution.
	RemoveRetweetPrefix bool
	// RemoveURLs strips every URL. Mutually exclusive with UnfurlURLs:
	// unfurling only runs when RemoveURLs is off and entity offsets exist.
	RemoveURLs bool
	// UnfurlURLs replaces shortened URLs with their expanded form using the
	// post's URL entities.
	UnfurlURLs bool
	// RemoveLeadingMentions strips only the run of @handles at string start.
	RemoveLeadingMentions bool
	// RemoveAllMentions strips every @handle. Takes precedence over
	// RemoveLeadingMentions.
	RemoveAllMentions bool
	// RemoveAllHashtags strips hashtags, except those in KeepHashtags.
	RemoveAllHashtags bool
	// KeepHashtags is the allow-list of tags (without '#') that survive
	// RemoveAllHashtags. Matched case-insensitively.
	KeepHashtags []string
	// ReplaceEmoji maps a fixed emoji table to words.
	ReplaceEmoji bool
	// CollapseWhitespace squeezes runs of whitespace to single spaces.
	CollapseWhitespace bool
	// MinLength is the minimum rune count of the cleaned text; shorter
	// output is discarded (Clean returns "").
	MinLength int
	// CombineThread controls whether thread members beyond the root
	// contribute text. Consumed by the thread builder, not by Clean.
	CombineThread bool
}

// DefaultOptions returns the configuration used by the import pipeline.
func DefaultOptions() Options {
	return Options{
		RemoveRetweetPrefix:   true,
		RemoveURLs:            true,
		RemoveLeadingMentions: true,
		RemoveAllHashtags:     false,
		ReplaceEmoji:          true,
		CollapseWhitespace:    true,
		MinLength:             5,
		CombineThread:         true,
	}
}

// Clean normalizes text for embedding. urls may be nil; it is only consulted
// when unfurling. Returns "" when the cleaned text falls below MinLength,
// which callers treat as a discard signal.
func Clean(text string, urls []domain.URLEntity, opts Options) string {
	s := text

	if opts.RemoveRetweetPrefix {
		s = retweetPrefixRe.ReplaceAllString(s, "")
	}

	switch {
	case opts.RemoveURLs:
		s = urlRe.ReplaceAllString(s, "")
	case opts.UnfurlURLs && len(urls) > 0:
		s = unfurl(s, urls)
	}

	switch {
	case opts.RemoveAllMentions:
		s = allMentionsRe.ReplaceAllString(s, "")
	case opts.RemoveLeadingMentions:
		s = leadingMentionRe.ReplaceAllString(s, "")
	}

	if opts.RemoveAllHashtags {
		keep := make(map[string]bool, len(opts.KeepHashtags))
		for _, tag := range opts.KeepHashtags {
			keep[strings.ToLower(tag)] = true
		}
		s = hashtagRe.ReplaceAllStringFunc(s, func(m string) string {
			if keep[strings.ToLower(strings.TrimPrefix(m, "#"))] {
				return m
			}
			return ""
		})
	}

	if opts.ReplaceEmoji {
		s = replaceEmoji(s)
	}

	if opts.CollapseWhitespace {
		s = strings.Join(strings.Fields(s), " ")
	} else {
		s = strings.TrimSpace(s)
	}

	if opts.MinLength > 0 && utf8.RuneCountInString(s) < opts.MinLength {
		return ""
	}
	return s
}

// unfurl swaps shortened URLs for their expanded form. Entities with no
// expansion are left alone.
func unfurl(s string, urls []domain.URLEntity) string {
	for _, u := range urls {
		if u.URL == "" || u.ExpandedURL == "" {
			continue
		}
		s = strings.ReplaceAll(s, u.URL, u.ExpandedURL)
	}
	return s
}

// IsRetweet reports whether the raw text carries the retweet marker. Used by
// the orchestrator's pre-threading filter.
func IsRetweet(text string) bool {
	return strings.HasPrefix(text, "RT @")
}
