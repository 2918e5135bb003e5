package runtimeabi

import (
	"regexp"
	"time"
)

// regexValue wraps a compiled Go regexp plus its original source, since
// __regex_source needs the latter verbatim and Go's regexp package doesn't
// keep the input pattern accessible in GoTS's own /pattern/flags syntax.
type regexValue struct {
	source  string
	flags   string
	compile *regexp.Regexp
}

type regexTable struct {
	handleTable[*regexValue]
}

func newRegexTable() *regexTable { return &regexTable{} }

// Create backs __regex_create. GoTS flags are translated to Go's inline
// flag syntax (`i` -> `(?i)`); an unsupported pattern degrades to a regexp
// that matches nothing rather than panicking emitted code.
func (t *regexTable) Create(source, flags string) int64 {
	pattern := source
	if containsRune(flags, 'i') {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		re = regexp.MustCompile(`$^`)
	}
	return t.alloc(&regexValue{source: source, flags: flags, compile: re})
}

func containsRune(s string, r rune) bool {
	for _, c := range s {
		if c == r {
			return true
		}
	}
	return false
}

func (t *regexTable) Test(h int64, strings *stringTable, subject int64) int64 {
	rv, ok := t.get(h)
	s, sok := strings.get(subject)
	if !ok || !sok {
		return 0
	}
	if rv.compile.MatchString(s) {
		return 1
	}
	return 0
}

// Exec backs __regex_exec: returns the interned first match in subject, or
// the empty string when nothing matches. Capture groups are out of scope
// with the rest of the regex engine (§1).
func (t *regexTable) Exec(h int64, strings *stringTable, subject int64) int64 {
	rv, ok := t.get(h)
	s, sok := strings.get(subject)
	if !ok || !sok {
		return strings.CreateEmpty()
	}
	return strings.Intern(rv.compile.FindString(s))
}

func (t *regexTable) Global(h int64) int64 {
	rv, ok := t.get(h)
	if !ok || !containsRune(rv.flags, 'g') {
		return 0
	}
	return 1
}

func (t *regexTable) IgnoreCase(h int64) int64 {
	rv, ok := t.get(h)
	if !ok || !containsRune(rv.flags, 'i') {
		return 0
	}
	return 1
}

func (t *regexTable) Source(h int64, strings *stringTable) int64 {
	rv, ok := t.get(h)
	if !ok {
		return strings.CreateEmpty()
	}
	return strings.Intern(rv.source)
}

// Date is stubbed to wall-clock milliseconds; §1 excludes Date's own
// calendar semantics from this core, same carve-out as GoTSString/typed
// arrays. Anything beyond "a monotonically sensible timestamp" is out of
// scope.
func (a *ABI) DateNow() int64 {
	return time.Now().UnixMilli()
}
