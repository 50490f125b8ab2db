// Package engine runs the message dispatch loop. Each conversation gets a
// dedicated worker goroutine so its messages are processed strictly in
// arrival order; a weighted semaphore bounds how many dispatches run at once
// across all conversations. An optional janitor periodically purges terminal
// sessions from the handler-owned stores.
package engine
