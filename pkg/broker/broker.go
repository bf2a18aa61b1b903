package broker

// Broker is a minimal fan-out pub/sub used to distribute updates (such as
// container status changes) to any number of interested subscribers. The
// broker must be started (see Start) before messages will flow.
type Broker[T any] struct {
	publishCh     chan T
	subscribeCh   chan chan T
	unsubscribeCh chan chan T
	stopCh        chan struct{}
}

func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{
		publishCh:     make(chan T, 1),
		subscribeCh:   make(chan chan T),
		unsubscribeCh: make(chan chan T),
		stopCh:        make(chan struct{}),
	}
}

// Start runs the broker event loop, distributing published messages to all
// current subscribers. It blocks until Stop is called and is expected to be
// run in its own goroutine.
func (broker *Broker[T]) Start() {
	subscribers := make(map[chan T]struct{})
	for {
		select {
		case <-broker.stopCh:
			for ch := range subscribers {
				close(ch)
			}
			return
		case ch := <-broker.subscribeCh:
			subscribers[ch] = struct{}{}
		case ch := <-broker.unsubscribeCh:
			if _, ok := subscribers[ch]; ok {
				delete(subscribers, ch)
				close(ch)
			}
		case message := <-broker.publishCh:
			for ch := range subscribers {
				// Slow subscribers must not stall the broker
				select {
				case ch <- message:
				default:
				}
			}
		}
	}
}

func (broker *Broker[T]) Stop() {
	close(broker.stopCh)
}

func (broker *Broker[T]) Subscribe() chan T {
	ch := make(chan T, 8)
	broker.subscribeCh <- ch
	return ch
}

func (broker *Broker[T]) Unsubscribe(ch chan T) {
	broker.unsubscribeCh <- ch
}

func (broker *Broker[T]) Publish(message T) {
	broker.publishCh <- message
}
