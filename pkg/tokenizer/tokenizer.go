package tokenizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Tokenizer segments text into surface tokens.
type Tokenizer interface {
	Tokenize(ctx context.Context, text string) ([]string, error)
	Variant() Variant
}

// Variant names a tokenizer implementation
type Variant string

const (
	VariantDictionary Variant = "dictionary"
	VariantHeuristic  Variant = "heuristic"
)

// ParseVariant validates a configured variant name. Empty and unknown names
// are rejected rather than mapped to a default.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case VariantDictionary, VariantHeuristic:
		return v, nil
	default:
		return "", fmt.Errorf("unknown tokenizer variant %q (must be dictionary or heuristic)", s)
	}
}

// ErrInit matches any InitError via errors.Is
var ErrInit = errors.New("tokenizer initialization failed")

// InitError reports a failed dictionary build. It is fatal to the attempt
// that produced it only; the next Tokenize call starts a fresh build.
type InitError struct {
	Variant Variant
	Err     error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("%s tokenizer initialization failed: %v", e.Variant, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

func (e *InitError) Is(target error) bool { return target == ErrInit }

// Config selects and configures a tokenizer at startup
type Config struct {
	Variant Variant

	// DictionaryLocation is empty for the embedded IPA dictionary, a
	// filesystem path (optionally file://), or s3://bucket/key.
	DictionaryLocation string

	// InitTimeout bounds a single dictionary build (default: 2m)
	InitTimeout time.Duration

	S3 S3Config
}

// InitObserver is notified after every dictionary build attempt
type InitObserver func(variant Variant, err error, elapsed time.Duration)

// Option customizes New
type Option func(*options)

type options struct {
	observer InitObserver
	fetcher  ObjectFetcher
	build    BuildFunc
}

// WithInitObserver reports build attempts, e.g. to metrics
func WithInitObserver(fn InitObserver) Option {
	return func(o *options) { o.observer = fn }
}

// WithObjectFetcher supplies the S3 client used for s3:// locations
func WithObjectFetcher(f ObjectFetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithBuildFunc replaces the dictionary build entirely
func WithBuildFunc(fn BuildFunc) Option {
	return func(o *options) { o.build = fn }
}

// New constructs the configured variant. For the dictionary variant nothing
// is loaded until the first Tokenize call.
func New(ctx context.Context, cfg Config, opts ...Option) (Tokenizer, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	variant, err := ParseVariant(string(cfg.Variant))
	if err != nil {
		return nil, err
	}

	switch variant {
	case VariantHeuristic:
		return NewHeuristicSegmenter(), nil
	default:
		build := o.build
		if build == nil {
			fetcher := o.fetcher
			if fetcher == nil && isS3Location(cfg.DictionaryLocation) {
				fetcher, err = NewS3Fetcher(ctx, cfg.S3)
				if err != nil {
					return nil, err
				}
			}
			build = KagomeBuilder(cfg.DictionaryLocation, fetcher)
		}
		return NewDictionaryTokenizer(build, cfg.InitTimeout, o.observer), nil
	}
}
