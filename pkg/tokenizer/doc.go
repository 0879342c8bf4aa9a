// Package tokenizer turns raw, unsegmented Japanese text into an ordered
// sequence of surface tokens.
//
// # Variants
//
// Two variants implement the same Tokenizer interface:
//
//   - DictionaryTokenizer: morphological analysis backed by a MeCab IPA
//     dictionary (kagome). Only open-class tokens (nouns, verbs, adjectives)
//     are yielded; particles, auxiliary verbs, conjunctions and symbols are
//     dropped.
//   - HeuristicSegmenter: splits on script-class transitions (kanji,
//     hiragana, katakana, alphanumerics). Needs no dictionary and keeps every
//     segment.
//
// The variant is chosen once at startup through Config.Variant. There is no
// fallback from one variant to the other: if the dictionary cannot be loaded
// the caller gets an InitError and the next call retries.
//
// # Lazy initialization
//
// Loading the dictionary is expensive, so DictionaryTokenizer builds its
// analyzer on first use. Concurrent first callers share a single in-flight
// build:
//
//	Uninitialized --first call--> Initializing --ok--> Ready
//	      ^                             |
//	      +-----------failure-----------+
//
// Every caller waiting on a failed build receives the same error. A Ready
// tokenizer is reused for the lifetime of the process.
//
// # Usage
//
//	tok, err := tokenizer.New(ctx, tokenizer.Config{Variant: tokenizer.VariantDictionary})
//	if err != nil {
//		return err
//	}
//	tokens, err := tok.Tokenize(ctx, "東京は美しい")
//	// tokens: ["東京", "美しい"]
package tokenizer
