// Package tokenizer splits a line of text into stemmed, stop-word-filtered
// tokens while remembering where each word started in the trimmed line.
// It is shared by the index builder and the query engine so that query words
// are normalised exactly like indexed words.
package tokenizer

import (
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/search100/internal/indexer/stemmer"
)

// MinWordLength is the shortest word, in characters, that is indexed.
const MinWordLength = 3

// Punctuation lists the characters that delimit words inside a
// space-separated chunk. They are never part of a word.
const Punctuation = "!\"#$%&'()*+, -./:;<=>?@[\\]^_`{|}~"

const lineTrim = " \n\r\t"

var stopWords = map[string]struct{}{
	"i": {}, "me": {}, "my": {}, "myself": {}, "we": {}, "our": {}, "ours": {},
	"ourselves": {}, "you": {}, "your": {}, "yours": {}, "yourself": {},
	"yourselves": {}, "he": {}, "him": {}, "his": {}, "himself": {}, "she": {},
	"her": {}, "hers": {}, "herself": {}, "it": {}, "its": {}, "itself": {},
	"they": {}, "them": {}, "their": {}, "theirs": {}, "themselves": {},
	"what": {}, "which": {}, "who": {}, "whom": {}, "this": {}, "that": {},
	"these": {}, "those": {}, "am": {}, "is": {}, "are": {}, "was": {},
	"were": {}, "be": {}, "been": {}, "being": {}, "have": {}, "has": {},
	"had": {}, "having": {}, "do": {}, "does": {}, "did": {}, "doing": {},
	"a": {}, "an": {}, "the": {}, "and": {}, "but": {}, "if": {}, "or": {},
	"because": {}, "as": {}, "until": {}, "while": {}, "of": {}, "at": {},
	"by": {}, "for": {}, "with": {}, "about": {}, "against": {}, "between": {},
	"into": {}, "through": {}, "during": {}, "before": {}, "after": {},
	"above": {}, "below": {}, "to": {}, "from": {}, "up": {}, "down": {},
	"in": {}, "out": {}, "on": {}, "off": {}, "over": {}, "under": {},
	"again": {}, "further": {}, "then": {}, "once": {}, "here": {}, "there": {},
	"when": {}, "where": {}, "why": {}, "how": {}, "all": {}, "any": {},
	"both": {}, "each": {}, "few": {}, "more": {}, "most": {}, "other": {},
	"some": {}, "such": {}, "no": {}, "nor": {}, "not": {}, "only": {},
	"own": {}, "same": {}, "so": {}, "than": {}, "too": {}, "very": {},
	"s": {}, "t": {}, "can": {}, "will": {}, "just": {}, "don": {},
	"should": {}, "now": {},
}

// Token is a single indexable word of a line.
type Token struct {
	// Original is the word as it appeared in the line.
	Original string `json:"original"`
	// Stemmed is the normalised form used as the index term.
	Stemmed string `json:"stemmed"`
	// Index is the character offset of the word in the trimmed line.
	Index int `json:"index"`
}

// IsStopWord reports whether word, compared case-insensitively, is a stop word.
func IsStopWord(word string) bool {
	_, ok := stopWords[strings.ToLower(word)]
	return ok
}

// Stemmable reports whether word is long enough and not a stop word.
func Stemmable(word string) bool {
	return utf8.RuneCountInString(word) >= MinWordLength && !IsStopWord(word)
}

func isPunctuation(r rune) bool {
	return strings.ContainsRune(Punctuation, r)
}

// Tokenize returns the stemmable words of line in order of appearance.
// Offsets count characters; every separator and punctuation character
// advances the offset by one.
func Tokenize(line string) []Token {
	line = strings.Trim(line, lineTrim)
	if line == "" {
		return nil
	}

	var tokens []Token
	offset := 0
	for _, chunk := range strings.Split(line, " ") {
		var b strings.Builder
		start := offset
		flush := func() {
			if b.Len() == 0 {
				return
			}
			word := b.String()
			b.Reset()
			if !Stemmable(word) {
				return
			}
			tokens = append(tokens, Token{
				Original: word,
				Stemmed:  stemmer.Stem(word),
				Index:    start,
			})
		}

		for i, r := range chunk {
			if isPunctuation(r) {
				flush()
			} else {
				if b.Len() == 0 {
					start = offset
				}
				// Raw bytes keep invalid UTF-8 identical to the source line.
				_, size := utf8.DecodeRuneInString(chunk[i:])
				b.WriteString(chunk[i : i+size])
			}
			offset++
		}
		flush()
		offset++
	}
	return tokens
}
