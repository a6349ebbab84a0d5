// Package stemmer implements the Porter suffix-stripping algorithm used to
// normalise English word forms before they are indexed or queried.
//
// Stem is a pure function: it only depends on its argument and keeps no
// state between calls.
package stemmer

import (
	"bytes"
	"strings"
)

type rule struct {
	suffix      string
	replacement string
}

// Rule tables are scanned in declared order. Stages 2 and 4 are bucketed by
// the penultimate letter of the word, stage 3 by the last letter; a rule can
// only match a word that shares that letter, so bucketing preserves the first
// matching rule.
var step2Rules = map[byte][]rule{
	'a': {{"ational", "ate"}, {"tional", "tion"}},
	'c': {{"enci", "ence"}, {"anci", "ance"}},
	'e': {{"izer", "ize"}},
	'l': {{"abli", "able"}, {"alli", "al"}, {"entli", "ent"}, {"eli", "e"}, {"ousli", "ous"}},
	'o': {{"ization", "ize"}, {"ation", "ate"}, {"ator", "ate"}},
	's': {{"alism", "al"}, {"iveness", "ive"}, {"fulness", "ful"}, {"ousness", "ous"}},
	't': {{"aliti", "al"}, {"iviti", "ive"}, {"biliti", "ble"}},
}

var step3Rules = map[byte][]rule{
	'e': {{"icate", "ic"}, {"ative", ""}, {"alize", "al"}},
	'i': {{"iciti", "ic"}},
	'l': {{"ical", "ic"}, {"ful", ""}},
	's': {{"ness", ""}},
}

var step4Rules = map[byte][]rule{
	'a': {{"al", ""}},
	'c': {{"ance", ""}, {"ence", ""}},
	'e': {{"er", ""}},
	'i': {{"ic", ""}},
	'l': {{"able", ""}, {"ible", ""}},
	'n': {{"ant", ""}, {"ement", ""}, {"ment", ""}, {"ent", ""}},
	'o': {{"ou", ""}},
	's': {{"ism", ""}},
	't': {{"ate", ""}, {"iti", ""}},
	'u': {{"ous", ""}},
	'v': {{"ive", ""}},
	'z': {{"ize", ""}},
}

// Stem returns the stem of word. The word is lowercased first.
func Stem(s string) string {
	w := newWord(s)
	w.step1a()
	w.step1b()
	w.step1c()
	w.step2()
	w.step3()
	w.step4()
	w.step5a()
	w.step5b()
	return w.String()
}

// word is the buffer a single Stem call transforms in place.
type word struct {
	b []byte
}

func newWord(s string) *word {
	return &word{b: []byte(strings.ToLower(s))}
}

func (w *word) String() string {
	return string(w.b)
}

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

// isConsonant reports whether the letter at i is a consonant. A 'y' is a
// consonant at the start of the word or after a vowel, so a run of y's
// alternates starting from whatever precedes the run.
func (w *word) isConsonant(i int) bool {
	c := w.b[i]
	if isVowel(c) {
		return false
	}
	if c != 'y' {
		return true
	}
	k := i
	for k > 0 && w.b[k-1] == 'y' {
		k--
	}
	consonant := k == 0 || isVowel(w.b[k-1])
	if (i-k)%2 == 1 {
		consonant = !consonant
	}
	return consonant
}

// measure counts the VC sequences of [C](VC)^m[V] in the word with the last
// suffixLen letters removed.
func (w *word) measure(suffixLen int) int {
	n := len(w.b) - suffixLen
	start := -1
	for i := 0; i < n; i++ {
		if !w.isConsonant(i) {
			start = i
			break
		}
	}
	if start < 0 {
		return 0
	}
	end := -1
	for i := n - 1; i > start; i-- {
		if w.isConsonant(i) {
			end = i
			break
		}
	}
	if end < 0 {
		return 0
	}

	m := 0
	inVowels := true
	for i := start; i <= end; i++ {
		consonant := w.isConsonant(i)
		if consonant && inVowels {
			m++
			inVowels = false
		} else if !consonant && !inVowels {
			inVowels = true
		}
	}
	return m
}

// containsVowel reports whether the word minus suffixLen letters holds a
// vowel, counting a 'y' that follows a consonant.
func (w *word) containsVowel(suffixLen int) bool {
	n := len(w.b) - suffixLen
	for i := 0; i < n; i++ {
		if !w.isConsonant(i) {
			return true
		}
	}
	return false
}

// doubleConsonant reports whether the word minus suffixLen letters ends in
// two identical consonants.
func (w *word) doubleConsonant(suffixLen int) bool {
	n := len(w.b) - suffixLen
	if n < 2 {
		return false
	}
	return w.isConsonant(n-1) && w.b[n-1] == w.b[n-2]
}

// endsCVC reports whether the word minus suffixLen letters ends
// consonant-vowel-consonant where the final consonant is not w, x or y.
func (w *word) endsCVC(suffixLen int) bool {
	n := len(w.b) - suffixLen
	if n < 3 {
		return false
	}
	if !w.isConsonant(n-3) || w.isConsonant(n-2) || !w.isConsonant(n-1) {
		return false
	}
	switch w.b[n-1] {
	case 'w', 'x', 'y':
		return false
	}
	return true
}

func (w *word) hasSuffix(suffix string) bool {
	return bytes.HasSuffix(w.b, []byte(suffix))
}

func (w *word) hasSuffixByte(c byte) bool {
	return len(w.b) > 0 && w.b[len(w.b)-1] == c
}

func (w *word) replaceSuffix(n int, replacement string) {
	w.b = append(w.b[:len(w.b)-n], replacement...)
}

func (w *word) step1a() {
	switch {
	case w.hasSuffix("sses"):
		w.replaceSuffix(4, "ss")
	case w.hasSuffix("ies"):
		w.replaceSuffix(3, "i")
	case w.hasSuffix("ss"):
	case w.hasSuffix("s"):
		w.replaceSuffix(1, "")
	}
}

func (w *word) step1b() {
	if w.hasSuffix("eed") {
		if w.measure(3) > 0 {
			w.replaceSuffix(3, "ee")
		}
		return
	}

	switch {
	case w.hasSuffix("ing") && w.containsVowel(3):
		w.replaceSuffix(3, "")
	case !w.hasSuffix("ing") && w.hasSuffix("ed") && w.containsVowel(2):
		w.replaceSuffix(2, "")
	default:
		return
	}

	switch {
	case w.hasSuffix("at"), w.hasSuffix("bl"), w.hasSuffix("iz"):
		w.b = append(w.b, 'e')
	case w.doubleConsonant(0):
		if !w.hasSuffixByte('l') && !w.hasSuffixByte('s') && !w.hasSuffixByte('z') {
			w.replaceSuffix(1, "")
		}
	case w.endsCVC(0) && w.measure(0) == 1:
		w.b = append(w.b, 'e')
	}
}

func (w *word) step1c() {
	if w.hasSuffixByte('y') && w.containsVowel(1) {
		w.b[len(w.b)-1] = 'i'
	}
}

// applyRules replaces the first suffix in rules whose stripped stem has a
// measure above gate.
func (w *word) applyRules(rules []rule, gate int) {
	for _, r := range rules {
		if !w.hasSuffix(r.suffix) {
			continue
		}
		if w.measure(len(r.suffix)) > gate {
			w.replaceSuffix(len(r.suffix), r.replacement)
			return
		}
	}
}

func (w *word) step2() {
	if len(w.b) < 2 {
		return
	}
	w.applyRules(step2Rules[w.b[len(w.b)-2]], 0)
}

func (w *word) step3() {
	if len(w.b) < 1 {
		return
	}
	w.applyRules(step3Rules[w.b[len(w.b)-1]], 0)
}

func (w *word) step4() {
	n := len(w.b)
	if n < 2 {
		return
	}
	// -ion is only removed after s or t, and never falls through to the table.
	if w.hasSuffix("ion") {
		if n > 3 && (w.b[n-4] == 's' || w.b[n-4] == 't') && w.measure(3) > 1 {
			w.replaceSuffix(3, "")
		}
		return
	}
	w.applyRules(step4Rules[w.b[n-2]], 1)
}

func (w *word) step5a() {
	if !w.hasSuffixByte('e') {
		return
	}
	m := w.measure(1)
	if m > 1 || (m == 1 && !w.endsCVC(1)) {
		w.replaceSuffix(1, "")
	}
}

func (w *word) step5b() {
	if w.measure(0) > 1 && w.doubleConsonant(0) && w.hasSuffixByte('l') {
		w.replaceSuffix(1, "")
	}
}
