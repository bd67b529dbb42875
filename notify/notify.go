// Package notify delivers characteristic value changes to at most one
// subscribed client.
package notify

import "sync"

// Notifier pushes a value to a subscribed client.
type Notifier interface {
	Notify(value []byte) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(value []byte) error

func (f NotifierFunc) Notify(value []byte) error {
	return f(value)
}

// Channel holds a single subscriber. A failed delivery drops the
// subscriber until the client subscribes again.
type Channel struct {
	mu         sync.Mutex
	name       string
	subscriber Notifier
	log        Logger
}

// NewChannel returns a channel without subscriber. The name is only used
// for logging.
func NewChannel(name string, logger Logger) *Channel {
	c := &Channel{name: name}

	if logger != nil {
		c.log = logger
	} else {
		c.log = noopLogger{}
	}

	return c
}

// Subscribe replaces any previous subscriber.
func (c *Channel) Subscribe(n Notifier) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subscriber != nil {
		c.log.Debugf("Replacing %v subscriber", c.name)
	}

	c.subscriber = n
}

// Unsubscribe drops the current subscriber, if any.
func (c *Channel) Unsubscribe() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subscriber = nil
}

// Subscribed reports whether a subscriber is present.
func (c *Channel) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.subscriber != nil
}

// Push delivers value to the subscriber. Without subscriber it does nothing.
func (c *Channel) Push(value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subscriber == nil {
		return
	}

	c.log.Debugf("Notifying %v with value %x", c.name, value)

	err := c.subscriber.Notify(value)
	if err != nil {
		c.log.Warnf("Notification of %v failed, dropping subscriber: %v", c.name, err)
		c.subscriber = nil
	}
}
