package session

import "errors"

// ErrQueueClosed is returned by Push after Close, and by Pop once the queue
// is closed and empty.
var ErrQueueClosed = errors.New("queue closed")
