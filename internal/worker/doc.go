// Package worker runs pools of consumers against a coordination queue.
//
// A Pool owns N consumer goroutines with stable ids (<prefix>-<n>). Each one
// claims an item, runs the Handler, and always finalizes the item afterwards
// so its grouping key is released. Failures classified as retryable by
// services.Retryable are resubmitted, landing at the end of the queue, until
// MaxAttempts is reached.
//
// Sources abstract where items come from: Local wraps an in-process
// queue.Queue, and the IPC client satisfies Source for remote daemons.
package worker
