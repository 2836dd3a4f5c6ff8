package services

import (
	"regexp"
	"strconv"
	"strings"
)

var BannedWords = []string{
	"fuck", "fucking", "fucker", "shit", "shitty", "bullshit",
	"asshole", "bastard", "bitch", "cunt",
	"nigger", "nigga", "chink", "spic", "kike", "faggot", "fag",
	"retard", "retarded", "tranny",
	"porn", "porno", "nude", "nudes",
	"scam", "scammer", "phishing", "malware",
}

// ContentFilter rejects report text that is abusive or looks like spam.
type ContentFilter struct {
	bannedWordRegexps   []*regexp.Regexp
	repeatedCharPattern *regexp.Regexp
	allCapsPattern      *regexp.Regexp
}

func NewContentFilter() *ContentFilter {
	f := &ContentFilter{
		bannedWordRegexps:   make([]*regexp.Regexp, 0, len(BannedWords)),
		repeatedCharPattern: repeatedRunPattern(6),
		allCapsPattern:      regexp.MustCompile(`\b[A-Z]{5,}\b`),
	}
	for _, word := range BannedWords {
		f.bannedWordRegexps = append(f.bannedWordRegexps, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(word)+`\b`))
	}
	return f
}

// repeatedRunPattern matches n or more of the same letter or punctuation
// mark in a row. RE2 has no backreferences, so every run is spelled out.
func repeatedRunPattern(n int) *regexp.Regexp {
	quant := "{" + strconv.Itoa(n) + ",}"
	runs := make([]string, 0, 29)
	for c := 'a'; c <= 'z'; c++ {
		runs = append(runs, string(c)+quant)
	}
	runs = append(runs, `!`+quant, `\?`+quant, `\.`+quant)
	return regexp.MustCompile(`(?i)(` + strings.Join(runs, "|") + `)`)
}

// Check returns an InvalidArgument error naming the field when text is
// rejected. More than three all-caps words counts as shouting.
func (f *ContentFilter) Check(field, text string) error {
	for _, re := range f.bannedWordRegexps {
		if re.MatchString(text) {
			return invalid(field + " contains inappropriate language")
		}
	}
	if f.repeatedCharPattern.MatchString(text) {
		return invalid(field + " appears to be spam")
	}
	if len(f.allCapsPattern.FindAllString(text, -1)) > 3 {
		return invalid(field + " uses excessive capital letters")
	}
	return nil
}
