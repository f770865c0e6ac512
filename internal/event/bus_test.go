package event

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_SubscribeReceivesOwnTopicOnly(t *testing.T) {
	b := NewBus()
	defer b.Close()

	var got []Event
	b.Subscribe(ToolStart, func(e Event) { got = append(got, e) })

	b.Publish(Event{Type: ToolStart, Data: "a"})
	b.Publish(Event{Type: Finish, Data: "ignored"})
	b.Publish(Event{Type: ToolStart, Data: "b"})

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Data)
	assert.Equal(t, "b", got[1].Data)
}

func TestBus_PublishIsSynchronous(t *testing.T) {
	b := NewBus()
	defer b.Close()

	var done atomic.Bool
	b.Subscribe(TextDelta, func(Event) {
		time.Sleep(20 * time.Millisecond)
		done.Store(true)
	})

	b.Publish(Event{Type: TextDelta})
	assert.True(t, done.Load(), "Publish must return only after subscribers ran")
}

func TestBus_DeliveryOrderMatchesRegistration(t *testing.T) {
	b := NewBus()
	defer b.Close()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		b.Subscribe(Finish, func(Event) { order = append(order, i) })
	}

	b.Publish(Event{Type: Finish})
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestBus_SubscribeAllSeesEveryTopic(t *testing.T) {
	b := NewBus()
	defer b.Close()

	var seen []EventType
	b.SubscribeAll(func(e Event) { seen = append(seen, e.Type) })

	b.Publish(Event{Type: ToolStart})
	b.Publish(Event{Type: TextDelta})
	b.Publish(Event{Type: Finish})

	assert.Equal(t, []EventType{ToolStart, TextDelta, Finish}, seen)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	count := 0
	unsub := b.Subscribe(ToolComplete, func(Event) { count++ })

	b.Publish(Event{Type: ToolComplete})
	unsub()
	b.Publish(Event{Type: ToolComplete})

	assert.Equal(t, 1, count)
}

func TestBus_UnsubscribeAll(t *testing.T) {
	b := NewBus()
	defer b.Close()

	count := 0
	unsub := b.SubscribeAll(func(Event) { count++ })

	b.Publish(Event{Type: ToolStart})
	unsub()
	b.Publish(Event{Type: ToolStart})

	assert.Equal(t, 1, count)
}

func TestBus_PublishAsyncEventuallyDelivers(t *testing.T) {
	b := NewBus()
	defer b.Close()

	delivered := make(chan Event, 1)
	b.Subscribe(FileEdited, func(e Event) { delivered <- e })

	b.PublishAsync(Event{Type: FileEdited, Data: FileEditedData{File: "/tmp/x"}})

	select {
	case e := <-delivered:
		assert.Equal(t, FileEdited, e.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("async event never arrived")
	}
}

func TestBus_ClosedBusDropsEverything(t *testing.T) {
	b := NewBus()

	count := 0
	b.Subscribe(ToolStart, func(Event) { count++ })
	require.NoError(t, b.Close())

	b.Publish(Event{Type: ToolStart})
	assert.Zero(t, count)

	// Subscribing after close is a no-op with a harmless unsubscribe.
	unsub := b.Subscribe(ToolStart, func(Event) {})
	unsub()

	assert.NoError(t, b.Close(), "double close is safe")
}

func TestBus_SubscriberMayReenter(t *testing.T) {
	b := NewBus()
	defer b.Close()

	var chained bool
	b.Subscribe(ToolComplete, func(Event) { chained = true })
	b.Subscribe(ToolStart, func(Event) {
		b.Publish(Event{Type: ToolComplete})
	})

	b.Publish(Event{Type: ToolStart})
	assert.True(t, chained, "publishing from inside a subscriber must not deadlock")
}

func TestBus_ConcurrentPublishers(t *testing.T) {
	b := NewBus()
	defer b.Close()

	var count atomic.Int64
	b.Subscribe(TextDelta, func(Event) { count.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Publish(Event{Type: TextDelta})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), count.Load())
}

func TestGlobalBus_ResetDropsSubscribers(t *testing.T) {
	defer Reset()

	count := 0
	Subscribe(Finish, func(Event) { count++ })
	Publish(Event{Type: Finish})
	require.Equal(t, 1, count)

	Reset()
	Publish(Event{Type: Finish})
	assert.Equal(t, 1, count)
}

func TestBus_PubSubBackingIsAvailable(t *testing.T) {
	b := NewBus()
	defer b.Close()
	assert.NotNil(t, b.PubSub())
	assert.NotNil(t, PubSub())
}
