// Package mailbox provides bounded per-identity message queues.
//
// Every process identity (the planner, each worker, the monitor) owns one
// [Mailbox] inside a shared [Registry]. A Mailbox is a FIFO with an optional
// capacity limit:
//
//   - [Mailbox.Write] always succeeds, evicting the oldest entries first
//     when the mailbox is full, and returns what it evicted.
//   - [Mailbox.TryWrite] fails without mutating when the mailbox is full;
//     [Mailbox.TryWriteAll] does the same for several values at once.
//   - [Mailbox.Read] and [Mailbox.Peek] return [NullData] with ok=false
//     when the mailbox is empty.
//   - [Mailbox.NextWrite] returns a channel that is closed by the next
//     successful write after the call. Values already queued do not close
//     it, and one write closes every channel handed out before it.
//
// All methods are safe for concurrent use.
package mailbox
