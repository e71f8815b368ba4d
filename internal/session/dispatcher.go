package session

import (
	"context"
	"sync"
)

const changeBufferSize = 16

type changeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]*changeSubscriber
	nextID      int64
	bufferSize  int
}

type changeSubscriber struct {
	id     int64
	stream chan Snapshot
}

func newChangeDispatcher() *changeDispatcher {
	return &changeDispatcher{
		subscribers: make(map[int64]*changeSubscriber),
		bufferSize:  changeBufferSize,
	}
}

// subscribe registers a consumer for state snapshots. The stream drops
// snapshots when the consumer falls behind; consumers re-read the store's
// current state rather than replaying every transition.
func (d *changeDispatcher) subscribe(ctx context.Context) (<-chan Snapshot, func()) {
	subscriber := &changeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan Snapshot, d.bufferSize),
	}
	d.register(subscriber)
	cleanup := func() {
		d.unregister(subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

func (d *changeDispatcher) publish(snapshot Snapshot) {
	d.mu.RLock()
	copies := make([]*changeSubscriber, 0, len(d.subscribers))
	for _, subscriber := range d.subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- snapshot:
		default:
		}
	}
}

func (d *changeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *changeDispatcher) register(subscriber *changeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers[subscriber.id] = subscriber
}

func (d *changeDispatcher) unregister(subscriberID int64) {
	d.mu.Lock()
	delete(d.subscribers, subscriberID)
	d.mu.Unlock()
}
