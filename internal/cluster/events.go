package cluster

import (
	"context"
	"sync"

	"yqhp/matmul-engine/pkg/types"
)

const watchBuffer = 100

// broadcaster fans membership events out to watchers without blocking the publisher.
type broadcaster struct {
	mu          sync.RWMutex
	subscribers []chan *types.MemberEvent
}

func (b *broadcaster) watch(ctx context.Context) <-chan *types.MemberEvent {
	ch := make(chan *types.MemberEvent, watchBuffer)

	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(ch)
	}()

	return ch
}

func (b *broadcaster) publish(event *types.MemberEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// slow watcher, drop
		}
	}
}

func (b *broadcaster) remove(ch chan *types.MemberEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscribers {
		if sub == ch {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}
