package tokenizer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalyzer struct {
	morphemes []Morpheme
}

func (f *fakeAnalyzer) Analyze(string) []Morpheme { return f.morphemes }

// countingBuild returns a BuildFunc that blocks until release is closed and
// counts how many builds were started.
func countingBuild(calls *atomic.Int32, release <-chan struct{}, analyzer Analyzer, err error) BuildFunc {
	return func(ctx context.Context) (Analyzer, error) {
		calls.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if err != nil {
			return nil, err
		}
		return analyzer, nil
	}
}

func waitForState(t *testing.T, tok *DictionaryTokenizer, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return tok.State() == want }, time.Second, time.Millisecond)
}

// settle gives goroutines that already started time to attach to the
// in-flight build.
func settle(started *sync.WaitGroup) {
	started.Wait()
	time.Sleep(50 * time.Millisecond)
}

func TestDictionaryTokenizer_CoalescesConcurrentInit(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	analyzer := &fakeAnalyzer{morphemes: []Morpheme{{Surface: "東京", POS: "名詞"}}}
	tok := NewDictionaryTokenizer(countingBuild(&calls, release, analyzer, nil), time.Second, nil)

	assert.Equal(t, Uninitialized, tok.State())

	const callers = 50
	var wg, started sync.WaitGroup
	results := make([][]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		started.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			results[i], errs[i] = tok.Tokenize(context.Background(), "東京")
		}(i)
	}

	waitForState(t, tok, Initializing)
	settle(&started)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, Ready, tok.State())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, []string{"東京"}, results[i])
	}

	// Ready instance is reused
	_, err := tok.Tokenize(context.Background(), "東京")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDictionaryTokenizer_FailureSharedThenRetried(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	buildErr := errors.New("dictionary missing")
	tok := NewDictionaryTokenizer(countingBuild(&calls, release, nil, buildErr), time.Second, nil)

	const callers = 10
	var wg, started sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		started.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			_, errs[i] = tok.Tokenize(context.Background(), "text")
		}(i)
	}

	waitForState(t, tok, Initializing)
	settle(&started)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, err := range errs {
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInit)
		assert.ErrorIs(t, err, buildErr)
		assert.Same(t, errs[0], err)
	}
	assert.Equal(t, Uninitialized, tok.State())

	// next call starts a fresh build
	_, err := tok.Tokenize(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDictionaryTokenizer_RecoversAfterFailure(t *testing.T) {
	var attempts atomic.Int32
	analyzer := &fakeAnalyzer{morphemes: []Morpheme{{Surface: "美しい", POS: "形容詞"}}}
	build := func(ctx context.Context) (Analyzer, error) {
		if attempts.Add(1) == 1 {
			return nil, errors.New("transient")
		}
		return analyzer, nil
	}

	var observed []error
	tok := NewDictionaryTokenizer(build, time.Second, func(v Variant, err error, _ time.Duration) {
		assert.Equal(t, VariantDictionary, v)
		observed = append(observed, err)
	})

	_, err := tok.Tokenize(context.Background(), "美しい")
	require.Error(t, err)

	tokens, err := tok.Tokenize(context.Background(), "美しい")
	require.NoError(t, err)
	assert.Equal(t, []string{"美しい"}, tokens)
	assert.Equal(t, Ready, tok.State())

	require.Len(t, observed, 2)
	assert.Error(t, observed[0])
	assert.NoError(t, observed[1])
}

func TestDictionaryTokenizer_BuildTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	build := func(ctx context.Context) (Analyzer, error) {
		select {
		case <-block:
			return &fakeAnalyzer{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	tok := NewDictionaryTokenizer(build, 20*time.Millisecond, nil)

	_, err := tok.Tokenize(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInit)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, Uninitialized, tok.State())
}

func TestDictionaryTokenizer_PanicIsInitError(t *testing.T) {
	tok := NewDictionaryTokenizer(func(context.Context) (Analyzer, error) {
		panic("corrupt dictionary")
	}, time.Second, nil)

	_, err := tok.Tokenize(context.Background(), "x")
	require.Error(t, err)

	var initErr *InitError
	require.True(t, errors.As(err, &initErr))
	assert.Contains(t, initErr.Error(), "corrupt dictionary")
}

func TestDictionaryTokenizer_WaiterCancellation(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	analyzer := &fakeAnalyzer{morphemes: []Morpheme{{Surface: "東京", POS: "名詞"}}}
	tok := NewDictionaryTokenizer(countingBuild(&calls, release, analyzer, nil), time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := tok.Tokenize(ctx, "東京")
		done <- err
	}()

	waitForState(t, tok, Initializing)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	// the build itself continues for other callers
	close(release)
	tokens, err := tok.Tokenize(context.Background(), "東京")
	require.NoError(t, err)
	assert.Equal(t, []string{"東京"}, tokens)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDictionaryTokenizer_FiltersClosedClasses(t *testing.T) {
	analyzer := &fakeAnalyzer{morphemes: []Morpheme{
		{Surface: "東京", POS: "名詞"},
		{Surface: "は", POS: "助詞"},
		{Surface: "とても", POS: "副詞"},
		{Surface: "美しい", POS: "形容詞"},
		{Surface: "です", POS: "助動詞"},
		{Surface: "しかし", POS: "接続詞"},
		{Surface: "走る", POS: "動詞"},
		{Surface: "。", POS: "記号"},
		{Surface: " ", POS: "名詞"},
	}}
	tok := NewDictionaryTokenizer(func(context.Context) (Analyzer, error) { return analyzer, nil }, 0, nil)

	tokens, err := tok.Tokenize(context.Background(), "ignored")
	require.NoError(t, err)
	assert.Equal(t, []string{"東京", "美しい", "走る"}, tokens)
}

func TestDictionaryTokenizer_Warm(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	close(release)
	tok := NewDictionaryTokenizer(countingBuild(&calls, release, &fakeAnalyzer{}, nil), time.Second, nil)

	require.NoError(t, tok.Warm(context.Background()))
	assert.Equal(t, Ready, tok.State())
	require.NoError(t, tok.Warm(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
}
