// Package eventbus carries analysis lifecycle events from the request path to
// background subscribers such as the history recorder.
package eventbus

// Publisher is the part of the bus the analysis service depends on.
type Publisher interface {
	PublishAsync(topic string, args ...interface{})
}

// Subscriber registers topic handlers.
type Subscriber interface {
	Subscribe(topic string, fn interface{}) error
}

var (
	_ Publisher  = (*AsyncEventBus)(nil)
	_ Subscriber = (*AsyncEventBus)(nil)
)
