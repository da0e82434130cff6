package main

import "time"

const (
	txQueueSize       = 1024 // capacity of the async TX ring
	serialReadBufSize = 4096 // per read() buffer for the slcan backend
	rxPollTimeout     = 500 * time.Millisecond
	rxBackoffMin      = 20 * time.Millisecond
	rxBackoffMax      = 500 * time.Millisecond
)
