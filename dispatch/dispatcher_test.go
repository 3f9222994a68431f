package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/BaSui01/avatargate/avatar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The avatar client publishes its lifecycle through this contract.
var _ avatar.EventSink = (*Dispatcher)(nil)

func TestEmitReachesHandlersAndHistory(t *testing.T) {
	d := NewDispatcher()
	var got Event
	d.Register(avatar.EventFailover, "observer", 0, func(_ context.Context, ev Event) error {
		got = ev
		return nil
	})

	d.Emit(context.Background(), avatar.EventFailover, "avatar_client", map[string]any{"provider": "duix"})

	assert.Equal(t, "duix", got.Data["provider"])
	assert.Equal(t, "avatar_client", got.Source)
	require.Len(t, d.History(avatar.EventFailover, 10), 1)
}

func TestDispatchRunsHandlersByPriority(t *testing.T) {
	d := NewDispatcher()
	var order []string
	mk := func(name string) Handler {
		return func(context.Context, Event) error {
			order = append(order, name)
			return nil
		}
	}
	d.Register("TACTICAL", "low", 1, mk("low"))
	d.Register("TACTICAL", "high", 10, mk("high"))
	d.Register("TACTICAL", "mid", 5, mk("mid"))

	results := d.Dispatch(context.Background(), "TACTICAL", "test", nil)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"high", "mid", "low"}, order)
}

func TestDispatchWildcardReceivesEverything(t *testing.T) {
	d := NewDispatcher()
	var seen []string
	d.RegisterWildcard("audit", 0, func(_ context.Context, ev Event) error {
		seen = append(seen, ev.Type)
		return nil
	})

	d.Dispatch(context.Background(), "TACTICAL", "test", nil)
	d.Dispatch(context.Background(), "TRANSITION", "test", nil)
	assert.Equal(t, []string{"TACTICAL", "TRANSITION"}, seen)
}

func TestDispatchHandlerErrorDoesNotStopOthers(t *testing.T) {
	d := NewDispatcher()
	boom := errors.New("boom")
	ran := false
	d.Register("EV", "failing", 10, func(context.Context, Event) error { return boom })
	d.Register("EV", "after", 1, func(context.Context, Event) error {
		ran = true
		return nil
	})

	results := d.Dispatch(context.Background(), "EV", "test", nil)
	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, boom)
	assert.NoError(t, results[1].Err)
	assert.True(t, ran)
	assert.Equal(t, 1, d.Statistics().HandlerErrors)
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	d := NewDispatcher()
	d.Register("EV", "panicky", 0, func(context.Context, Event) error {
		panic("oops")
	})

	results := d.Dispatch(context.Background(), "EV", "test", nil)
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.Contains(t, results[0].Err.Error(), "panicked")
}

func TestDispatchNoHandlers(t *testing.T) {
	d := NewDispatcher()
	assert.Nil(t, d.Dispatch(context.Background(), "UNKNOWN", "test", nil))
	assert.Equal(t, 1, d.Statistics().TotalEvents, "events count even without handlers")
}

func TestUnregister(t *testing.T) {
	d := NewDispatcher()
	d.Register("EV", "h", 0, func(context.Context, Event) error { return nil })

	assert.True(t, d.Unregister("EV", "h"))
	assert.False(t, d.Unregister("EV", "h"))
	assert.Nil(t, d.Dispatch(context.Background(), "EV", "test", nil))
}

func TestHistoryBoundedAndFiltered(t *testing.T) {
	d := NewDispatcher(WithMaxHistory(3))
	for i := 0; i < 5; i++ {
		d.Dispatch(context.Background(), "A", "test", map[string]any{"i": i})
	}
	d.Dispatch(context.Background(), "B", "test", nil)

	all := d.History("", 10)
	assert.Len(t, all, 3, "history is bounded")
	assert.Equal(t, "B", all[len(all)-1].Type, "newest last")

	onlyA := d.History("A", 10)
	for _, ev := range onlyA {
		assert.Equal(t, "A", ev.Type)
	}

	d.ClearHistory()
	assert.Empty(t, d.History("", 10))
}

func TestStatistics(t *testing.T) {
	d := NewDispatcher()
	d.Register("A", "h", 0, func(context.Context, Event) error { return nil })
	d.Dispatch(context.Background(), "A", "test", nil)
	d.Dispatch(context.Background(), "A", "test", nil)
	d.Dispatch(context.Background(), "B", "test", nil)

	stats := d.Statistics()
	assert.Equal(t, 3, stats.TotalEvents)
	assert.Equal(t, 2, stats.EventsByType["A"])
	assert.Equal(t, 1, stats.EventsByType["B"])
	assert.Equal(t, 1, stats.Registered["A"])
	assert.False(t, stats.LastEventTime.IsZero())
}

func TestTypeOf(t *testing.T) {
	typ, payload := TypeOf("TACTICAL: pressing high", "COMMENTARY")
	assert.Equal(t, "TACTICAL", typ)
	assert.Equal(t, "pressing high", payload)

	typ, payload = TypeOf("TRANSITION:counter attack", "COMMENTARY")
	assert.Equal(t, "TRANSITION", typ)
	assert.Equal(t, "counter attack", payload)

	typ, payload = TypeOf("just a sentence", "COMMENTARY")
	assert.Equal(t, "COMMENTARY", typ)
	assert.Equal(t, "just a sentence", payload)

	// Mixed case prefixes are prose, not event tags.
	typ, _ = TypeOf("Note: something", "COMMENTARY")
	assert.Equal(t, "COMMENTARY", typ)

	typ, _ = TypeOf(": empty prefix", "COMMENTARY")
	assert.Equal(t, "COMMENTARY", typ)
}
