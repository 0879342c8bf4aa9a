package tokenizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Morpheme is one analyzed token with its top-level part-of-speech tag
type Morpheme struct {
	Surface string
	POS     string
}

// Analyzer performs morphological analysis with a loaded dictionary.
// Implementations must be safe for concurrent use.
type Analyzer interface {
	Analyze(text string) []Morpheme
}

// BuildFunc loads a dictionary and returns a ready analyzer
type BuildFunc func(ctx context.Context) (Analyzer, error)

// State is the lifecycle state of a DictionaryTokenizer
type State int32

const (
	Uninitialized State = iota
	Initializing
	Ready
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	default:
		return "uninitialized"
	}
}

const (
	defaultInitTimeout = 2 * time.Minute
	buildKey           = "dictionary"
)

// DictionaryTokenizer yields open-class tokens using a lazily built analyzer.
type DictionaryTokenizer struct {
	build       BuildFunc
	initTimeout time.Duration
	observer    InitObserver

	group    singleflight.Group
	state    atomic.Int32
	analyzer atomic.Pointer[analyzerHolder]
}

type analyzerHolder struct {
	Analyzer
}

// NewDictionaryTokenizer creates a tokenizer in the Uninitialized state
func NewDictionaryTokenizer(build BuildFunc, initTimeout time.Duration, observer InitObserver) *DictionaryTokenizer {
	if initTimeout <= 0 {
		initTimeout = defaultInitTimeout
	}
	return &DictionaryTokenizer{
		build:       build,
		initTimeout: initTimeout,
		observer:    observer,
	}
}

// Variant implements Tokenizer
func (t *DictionaryTokenizer) Variant() Variant { return VariantDictionary }

// State returns the current lifecycle state
func (t *DictionaryTokenizer) State() State {
	return State(t.state.Load())
}

// Warm forces initialization without tokenizing anything
func (t *DictionaryTokenizer) Warm(ctx context.Context) error {
	_, err := t.ready(ctx)
	return err
}

// Tokenize implements Tokenizer
func (t *DictionaryTokenizer) Tokenize(ctx context.Context, text string) ([]string, error) {
	analyzer, err := t.ready(ctx)
	if err != nil {
		return nil, err
	}

	morphemes := analyzer.Analyze(text)
	tokens := make([]string, 0, len(morphemes))
	for _, m := range morphemes {
		if !ClassOf(m.POS).Open() {
			continue
		}
		if strings.TrimSpace(m.Surface) == "" {
			continue
		}
		tokens = append(tokens, m.Surface)
	}
	return tokens, nil
}

// ready returns the analyzer, building it if needed. Concurrent callers
// attach to the same in-flight build.
func (t *DictionaryTokenizer) ready(ctx context.Context) (Analyzer, error) {
	if h := t.analyzer.Load(); h != nil {
		return h.Analyzer, nil
	}

	ch := t.group.DoChan(buildKey, func() (interface{}, error) {
		if h := t.analyzer.Load(); h != nil {
			return h.Analyzer, nil
		}
		return t.initialize()
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Analyzer), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// initialize runs exactly one build. The build is detached from any single
// caller's context so a cancelled waiter cannot fail it for the others.
func (t *DictionaryTokenizer) initialize() (Analyzer, error) {
	t.state.Store(int32(Initializing))
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), t.initTimeout)
	defer cancel()

	analyzer, err := t.safeBuild(ctx)
	if err == nil && analyzer == nil {
		err = errors.New("dictionary build returned no analyzer")
	}

	if t.observer != nil {
		t.observer(VariantDictionary, err, time.Since(start))
	}

	if err != nil {
		t.state.Store(int32(Uninitialized))
		return nil, &InitError{Variant: VariantDictionary, Err: err}
	}

	t.analyzer.Store(&analyzerHolder{Analyzer: analyzer})
	t.state.Store(int32(Ready))
	return analyzer, nil
}

func (t *DictionaryTokenizer) safeBuild(ctx context.Context) (analyzer Analyzer, err error) {
	defer func() {
		if r := recover(); r != nil {
			analyzer = nil
			err = fmt.Errorf("dictionary build panicked: %v", r)
		}
	}()
	return t.build(ctx)
}
