package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	name string
	err  error
	sent []string
}

func (f *fakeSender) Send(_ context.Context, title, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, title)
	return nil
}

func (f *fakeSender) Name() string { return f.name }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFiltersByEvent(t *testing.T) {
	s := &fakeSender{name: "test"}
	n := NewNotifier([]Sender{s}, []string{EventPositionOpened}, discardLogger())

	require.NoError(t, n.Notify(context.Background(), EventPositionOpened, "Opened", "details"))
	require.NoError(t, n.Notify(context.Background(), EventPositionClosed, "Closed", "details"))

	assert.Equal(t, []string{"Opened"}, s.sent)
}

func TestNotifyEmptyFilterAdmitsEverything(t *testing.T) {
	s := &fakeSender{name: "test"}
	n := NewNotifier([]Sender{s}, nil, discardLogger())

	require.NoError(t, n.Notify(context.Background(), EventError, "Error", "boom"))
	assert.Len(t, s.sent, 1)
}

func TestNotifyAllBypassesFilter(t *testing.T) {
	s := &fakeSender{name: "test"}
	n := NewNotifier([]Sender{s}, []string{EventPositionOpened}, discardLogger())

	require.NoError(t, n.NotifyAll(context.Background(), "Startup", "bot running"))
	assert.Equal(t, []string{"Startup"}, s.sent)
}

func TestDispatchContinuesPastFailedSender(t *testing.T) {
	dead := &fakeSender{name: "dead", err: errors.New("network down")}
	alive := &fakeSender{name: "alive"}
	n := NewNotifier([]Sender{dead, alive}, nil, discardLogger())

	err := n.Notify(context.Background(), EventError, "Error", "boom")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "dead")
	assert.Len(t, alive.sent, 1, "healthy sender still delivers")
}

func TestNotifyNoSendersIsNoop(t *testing.T) {
	n := NewNotifier(nil, nil, discardLogger())
	assert.NoError(t, n.Notify(context.Background(), EventError, "Error", "boom"))
}
