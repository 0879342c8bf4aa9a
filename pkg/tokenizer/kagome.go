package tokenizer

import (
	"context"
	"fmt"

	kagome "github.com/ikawaha/kagome/v2/tokenizer"
)

type kagomeAnalyzer struct {
	t *kagome.Tokenizer
}

func (a *kagomeAnalyzer) Analyze(text string) []Morpheme {
	tokens := a.t.Tokenize(text)
	morphemes := make([]Morpheme, 0, len(tokens))
	for _, tok := range tokens {
		if tok.Class == kagome.DUMMY {
			continue
		}
		var pos string
		if features := tok.POS(); len(features) > 0 {
			pos = features[0]
		}
		morphemes = append(morphemes, Morpheme{Surface: tok.Surface, POS: pos})
	}
	return morphemes
}

// KagomeBuilder returns a BuildFunc that loads the dictionary found at
// location and wraps it in a kagome analyzer.
func KagomeBuilder(location string, fetcher ObjectFetcher) BuildFunc {
	return func(ctx context.Context) (Analyzer, error) {
		type result struct {
			analyzer Analyzer
			err      error
		}
		done := make(chan result, 1)

		// Dictionary decoding is not context aware; run it aside so the
		// build timeout still applies.
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- result{err: fmt.Errorf("dictionary load panicked: %v", r)}
				}
			}()

			d, err := OpenDictionary(ctx, location, fetcher)
			if err != nil {
				done <- result{err: err}
				return
			}
			t, err := kagome.New(d, kagome.OmitBosEos())
			if err != nil {
				done <- result{err: fmt.Errorf("failed to create analyzer: %w", err)}
				return
			}
			done <- result{analyzer: &kagomeAnalyzer{t: t}}
		}()

		select {
		case r := <-done:
			return r.analyzer, r.err
		case <-ctx.Done():
			return nil, fmt.Errorf("dictionary load aborted: %w", ctx.Err())
		}
	}
}
