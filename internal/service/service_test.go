package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrouter/internal/engine"
	"pdfrouter/pkg/model"
	"pdfrouter/pkg/traffic"
)

func newTestService() *Service {
	return New(nil, engine.DefaultViewerConfig(), nil)
}

func TestStartAndStopSession(t *testing.T) {
	svc := newTestService()

	id, err := svc.StartSession(model.SessionConfig{})
	require.NoError(t, err)
	assert.NotEmpty(t, string(id))

	// 默认值补齐
	sess, err := svc.get(id)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9222", sess.cfg.DevToolsURL)
	assert.Equal(t, defaultEventCapacity, cap(sess.events))

	require.NoError(t, svc.StopSession(id))
	assert.Error(t, svc.StopSession(id))
}

func TestUnknownSession(t *testing.T) {
	svc := newTestService()

	assert.ErrorIs(t, svc.EnableInterception("missing"), ErrNoSession)
	assert.ErrorIs(t, svc.AttachTarget("missing", ""), ErrNoSession)
	assert.ErrorIs(t, svc.NotifyDownloadIntent("missing", []byte(`{}`)), ErrNoSession)

	_, err := svc.SubscribeEvents("missing")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestOnDecisionEmitsEvent(t *testing.T) {
	svc := newTestService()
	id, err := svc.StartSession(model.SessionConfig{EventCapacity: 4})
	require.NoError(t, err)
	sess, err := svc.get(id)
	require.NoError(t, err)

	d := traffic.ResponseDetails{
		URL: "https://a/x.pdf", Method: "GET", StatusCode: 200, TabID: "tab1",
	}
	svc.onDecision(sess, d, traffic.Redirect("https://viewer/x"), engine.Meta{Filename: "x.pdf", IsPDF: true})

	select {
	case ev := <-sess.events:
		assert.Equal(t, model.EventIntercepted, ev.Type)
		assert.Equal(t, model.EventRedirected, ev.Outcome)
		assert.Equal(t, "https://a/x.pdf", ev.URL)
		assert.Equal(t, "x.pdf", ev.Filename)
		assert.Equal(t, model.TargetID("tab1"), ev.Target)
	case <-time.After(time.Second):
		t.Fatal("expected event")
	}
}

func TestEmitDropsWhenFull(t *testing.T) {
	svc := newTestService()
	id, err := svc.StartSession(model.SessionConfig{EventCapacity: 1})
	require.NoError(t, err)
	sess, err := svc.get(id)
	require.NoError(t, err)

	svc.emit(sess, model.Event{URL: "a"})
	svc.emit(sess, model.Event{URL: "b"}) // 满载丢弃，不阻塞

	ev := <-sess.events
	assert.Equal(t, "a", ev.URL)
	assert.Empty(t, sess.events)
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, model.EventPassed, outcomeOf(traffic.DecisionPass))
	assert.Equal(t, model.EventRewritten, outcomeOf(traffic.DecisionHeaders))
	assert.Equal(t, model.EventRedirected, outcomeOf(traffic.DecisionRedirect))
	assert.Equal(t, model.EventCancelled, outcomeOf(traffic.DecisionCancel))
}
