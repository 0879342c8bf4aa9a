package tokenizer

import (
	"context"
	"strings"
	"unicode"
)

type scriptClass int

const (
	scriptBoundary scriptClass = iota
	scriptKanji
	scriptHiragana
	scriptKatakana
	scriptAlnum
	scriptOther
)

func classify(r rune) scriptClass {
	switch {
	case unicode.IsSpace(r), unicode.IsPunct(r), unicode.IsSymbol(r):
		return scriptBoundary
	// The prolonged sound mark belongs to the Common script.
	case r == 'ー' || r == 'ｰ' || unicode.Is(unicode.Katakana, r):
		return scriptKatakana
	case unicode.Is(unicode.Hiragana, r):
		return scriptHiragana
	case r == '々' || r == '〆' || unicode.Is(unicode.Han, r):
		return scriptKanji
	case unicode.IsDigit(r), unicode.Is(unicode.Latin, r):
		return scriptAlnum
	case unicode.IsLetter(r):
		return scriptOther
	default:
		return scriptBoundary
	}
}

// minBigramRun is the shortest kanji run emitted as overlapping bigrams
const minBigramRun = 3

// HeuristicSegmenter splits text wherever the script class changes. Kanji
// runs of three or more characters are compounds with no visible boundary,
// so they are emitted as overlapping bigrams ("東京駅" becomes "東京",
// "京駅") and a query for a leading or trailing word still matches. It needs
// no dictionary and keeps every segment.
type HeuristicSegmenter struct{}

// NewHeuristicSegmenter returns a ready segmenter
func NewHeuristicSegmenter() *HeuristicSegmenter {
	return &HeuristicSegmenter{}
}

// Variant implements Tokenizer
func (s *HeuristicSegmenter) Variant() Variant { return VariantHeuristic }

// Tokenize implements Tokenizer. It never fails.
func (s *HeuristicSegmenter) Tokenize(_ context.Context, text string) ([]string, error) {
	var (
		tokens []string
		cur    strings.Builder
		last   = scriptBoundary
	)

	flush := func() {
		if cur.Len() == 0 {
			return
		}
		if last == scriptKanji {
			tokens = appendBigrams(tokens, []rune(cur.String()))
		} else {
			tokens = append(tokens, cur.String())
		}
		cur.Reset()
	}

	for _, r := range text {
		class := classify(r)
		if class == scriptBoundary {
			flush()
			last = scriptBoundary
			continue
		}
		if class != last {
			flush()
		}
		cur.WriteRune(r)
		last = class
	}
	flush()

	if tokens == nil {
		tokens = []string{}
	}
	return tokens, nil
}

func appendBigrams(tokens []string, run []rune) []string {
	if len(run) < minBigramRun {
		return append(tokens, string(run))
	}
	for i := 0; i+1 < len(run); i++ {
		tokens = append(tokens, string(run[i:i+2]))
	}
	return tokens
}
