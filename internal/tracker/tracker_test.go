package tracker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrouter/internal/correlation"
	"pdfrouter/pkg/model"
)

// fakeBus 记录订阅并允许测试侧触发信号
type fakeBus struct {
	mu   sync.Mutex
	subs map[string]func(Signal)
	seen []string
}

func newFakeBus() *fakeBus {
	return &fakeBus{subs: make(map[string]func(Signal))}
}

func (b *fakeBus) Subscribe(f Filter, fn func(Signal)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[f.URL] = fn
	b.seen = append(b.seen, f.URL)
	url := f.URL
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.subs[url] != nil {
			delete(b.subs, url)
		}
	}, nil
}

func (b *fakeBus) fire(url string, sig Signal) {
	b.mu.Lock()
	fn := b.subs[url]
	b.mu.Unlock()
	if fn != nil {
		fn(sig)
	}
}

func (b *fakeBus) subscribed(url string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subs[url] != nil
}

func TestArmSubscribesOnce(t *testing.T) {
	store := correlation.NewStore()
	bus := newFakeBus()
	tr := New(store, bus, nil)

	require.NoError(t, tr.Arm("https://a/1", model.TargetID("tab1")))
	assert.True(t, bus.subscribed("https://a/1"))
}

func TestRedirectMigratesAndRearms(t *testing.T) {
	store := correlation.NewStore()
	store.RecordForceDownload("https://a/1", "doc.pdf")
	bus := newFakeBus()
	tr := New(store, bus, nil)

	require.NoError(t, tr.Arm("https://a/1", "tab1"))
	bus.fire("https://a/1", Signal{Kind: SignalRedirect, URL: "https://a/1", RedirectURL: "https://a/2"})

	// 条目跟随重定向迁移，旧订阅拆除、新 URL 重新武装
	assert.False(t, bus.subscribed("https://a/1"))
	assert.True(t, bus.subscribed("https://a/2"))
	assert.False(t, store.Pending("https://a/1"))

	filename, ok := store.TakeForceDownload("https://a/2")
	require.True(t, ok)
	assert.Equal(t, "doc.pdf", filename)
}

func TestRedirectChainLeavesNoIntermediate(t *testing.T) {
	store := correlation.NewStore()
	store.RecordSuppressOnce("https://a/1")
	bus := newFakeBus()
	tr := New(store, bus, nil)

	require.NoError(t, tr.Arm("https://a/1", "tab1"))
	bus.fire("https://a/1", Signal{Kind: SignalRedirect, RedirectURL: "https://a/2"})
	bus.fire("https://a/2", Signal{Kind: SignalRedirect, RedirectURL: "https://a/3"})

	assert.False(t, store.Pending("https://a/1"))
	assert.False(t, store.Pending("https://a/2"))
	assert.True(t, store.TakeSuppressOnce("https://a/3"))
}

func TestCompletedEndsTracking(t *testing.T) {
	store := correlation.NewStore()
	bus := newFakeBus()
	tr := New(store, bus, nil)

	require.NoError(t, tr.Arm("https://a/1", "tab1"))
	bus.fire("https://a/1", Signal{Kind: SignalCompleted, URL: "https://a/1"})

	assert.False(t, bus.subscribed("https://a/1"))
}

func TestErrorEndsTracking(t *testing.T) {
	store := correlation.NewStore()
	bus := newFakeBus()
	tr := New(store, bus, nil)

	require.NoError(t, tr.Arm("https://a/1", "tab1"))
	bus.fire("https://a/1", Signal{Kind: SignalError, URL: "https://a/1"})

	assert.False(t, bus.subscribed("https://a/1"))
}

func TestRearmTearsDownPrevious(t *testing.T) {
	store := correlation.NewStore()
	bus := newFakeBus()
	tr := New(store, bus, nil)

	require.NoError(t, tr.Arm("https://a/1", "tab1"))
	require.NoError(t, tr.Arm("https://a/1", "tab1"))

	// 重复武装不应产生重复订阅
	assert.Equal(t, []string{"https://a/1", "https://a/1"}, bus.seen)
	assert.True(t, bus.subscribed("https://a/1"))
}

func TestClose(t *testing.T) {
	store := correlation.NewStore()
	bus := newFakeBus()
	tr := New(store, bus, nil)

	require.NoError(t, tr.Arm("https://a/1", "tab1"))
	require.NoError(t, tr.Arm("https://a/2", "tab1"))
	tr.Close()

	assert.False(t, bus.subscribed("https://a/1"))
	assert.False(t, bus.subscribed("https://a/2"))
}
