package widget

import (
	"context"
	"errors"
)

var (
	// ErrInvalidConfig is returned when the data-config attribute is malformed
	ErrInvalidConfig = errors.New("invalid widget configuration")
	// ErrEmptyFeed is returned when the response has no feed.entry list
	ErrEmptyFeed = errors.New("no articles available")
	// ErrRequestTimeout is returned when the feed request exceeds its timeout
	ErrRequestTimeout = errors.New("request timed out")
	// ErrLoadFailure is returned for transport and decoding failures
	ErrLoadFailure = errors.New("failed to load data")
	// ErrMissingAlternateLink is returned when an entry has no rel="alternate" link
	ErrMissingAlternateLink = errors.New("entry has no alternate link")
	// ErrAlreadyStarted is returned by a second Init on the same widget
	ErrAlreadyStarted = errors.New("widget already initialized")
)

// Locale selects the language of user-facing error messages
type Locale string

const (
	LocaleArabic  Locale = "ar"
	LocaleEnglish Locale = "en"
)

// DefaultLocale matches the blog the widget was written for
const DefaultLocale = LocaleArabic

var messages = map[Locale]map[error]string{
	LocaleArabic: {
		ErrInvalidConfig:        "إعدادات الأداة غير صالحة",
		ErrEmptyFeed:            "لا توجد مقالات متاحة",
		ErrRequestTimeout:       "مهلة الطلب انتهت",
		ErrLoadFailure:          "فشل في تحميل البيانات",
		ErrMissingAlternateLink: "رابط المقال غير متوفر",
	},
	LocaleEnglish: {
		ErrInvalidConfig:        "Invalid widget configuration",
		ErrEmptyFeed:            "No articles available",
		ErrRequestTimeout:       "The request timed out",
		ErrLoadFailure:          "Failed to load data",
		ErrMissingAlternateLink: "Article link is missing",
	},
}

// errorOrder lists the sentinels from most to least specific. A timeout is
// usually wrapped together with its context error, so it is checked first.
var errorOrder = []error{
	ErrInvalidConfig,
	ErrRequestTimeout,
	ErrEmptyFeed,
	ErrMissingAlternateLink,
	ErrLoadFailure,
}

// Classify maps err to one of the widget sentinels. Unknown errors are load failures.
func Classify(err error) error {
	for _, sentinel := range errorOrder {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrRequestTimeout
	}
	return ErrLoadFailure
}

// Message returns the localized text shown in the error block for err
func Message(err error, locale Locale) string {
	table, ok := messages[locale]
	if !ok {
		table = messages[DefaultLocale]
	}
	return table[Classify(err)]
}

// Kind returns a short label for err, used in logs and metrics
func Kind(err error) string {
	if err == nil {
		return "ok"
	}

	switch Classify(err) {
	case ErrInvalidConfig:
		return "invalid_config"
	case ErrRequestTimeout:
		return "timeout"
	case ErrEmptyFeed:
		return "empty_feed"
	case ErrMissingAlternateLink:
		return "missing_link"
	default:
		return "load_failure"
	}
}

// ParseLocale returns the locale for s, falling back to DefaultLocale
func ParseLocale(s string) Locale {
	if _, ok := messages[Locale(s)]; ok {
		return Locale(s)
	}
	return DefaultLocale
}
