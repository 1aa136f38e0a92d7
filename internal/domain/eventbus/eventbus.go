package eventbus

import (
	"sync"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"

	"nutrilens-server-go/internal/platform/logging"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
)

type Options struct {
	Workers   int
	QueueSize int
}

type queued struct {
	topic string
	event AnalysisEvent
}

// Bus dispatches lifecycle events to subscribers on a fixed worker pool. Publish
// never blocks the request path: when the queue is full the event is dropped.
type Bus struct {
	bus     evbus.Bus
	queue   chan queued
	stop    chan struct{}
	wg      sync.WaitGroup
	workers int
	logger  *logging.Logger

	started  atomic.Bool
	stopped  atomic.Bool
	dropped  atomic.Int64
	stopOnce sync.Once
}

func New(opts Options, logger *logging.Logger) *Bus {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &Bus{
		bus:     evbus.New(),
		queue:   make(chan queued, opts.QueueSize),
		stop:    make(chan struct{}),
		workers: opts.Workers,
		logger:  logger,
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (b *Bus) Start() {
	if !b.started.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}
}

// Stop delivers whatever is still queued and waits for the workers to exit.
func (b *Bus) Stop() {
	if b == nil {
		return
	}
	b.stopOnce.Do(func() {
		b.stopped.Store(true)
		close(b.stop)
		b.wg.Wait()
	})
}

func (b *Bus) worker() {
	defer b.wg.Done()
	for {
		select {
		case item := <-b.queue:
			b.dispatch(item)
		case <-b.stop:
			for {
				select {
				case item := <-b.queue:
					b.dispatch(item)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) dispatch(item queued) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.ErrorTag("PIPELINE", "event handler for %s panicked: %v", item.topic, r)
		}
	}()
	b.bus.Publish(item.topic, item.event)
}

// Publish queues ev for asynchronous delivery. A nil Bus discards it.
func (b *Bus) Publish(topic string, ev AnalysisEvent) {
	if b == nil {
		return
	}
	if ev.Type == "" {
		ev.Type = topic
	}
	if b.stopped.Load() {
		b.dropped.Add(1)
		return
	}
	select {
	case b.queue <- queued{topic: topic, event: ev}:
	default:
		b.dropped.Add(1)
		b.logger.WarnTag("PIPELINE", "event queue full, dropped %s", topic)
	}
}

// PublishSync delivers ev on the caller's goroutine.
func (b *Bus) PublishSync(topic string, ev AnalysisEvent) {
	if b == nil {
		return
	}
	if ev.Type == "" {
		ev.Type = topic
	}
	b.dispatch(queued{topic: topic, event: ev})
}

func (b *Bus) Subscribe(topic string, fn func(AnalysisEvent)) error {
	return b.bus.Subscribe(topic, fn)
}

// SubscribeAll registers fn for every analysis topic.
func (b *Bus) SubscribeAll(fn func(AnalysisEvent)) error {
	for _, topic := range AnalysisTopics {
		if err := b.bus.Subscribe(topic, fn); err != nil {
			return err
		}
	}
	return nil
}

// Dropped counts events discarded because the queue was full or the bus had stopped.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
