// Package stream runs the read and write loops that own an already-open byte channel.
//
// A manager pairs one channel direction with one capability and drives it on a
// dedicated goroutine:
//
//   - ReaderManager: Setup, then ReadOne until failure, delivering each item to a sink.
//   - WriterManager: Setup, then Dequeue from a queue and WriteOne until failure.
//
// Whatever ends the loop (Stop, an I/O failure, a decode failure, a failing sink or a
// panic) the manager runs the same teardown exactly once: the optional PreClose hook,
// closing the raw channel, the optional Closed hook.
//
// Failures are not returned to the caller of StartReader/StartWriter. They are logged
// and can be observed through Handle (Done, Err, State) or an exit hook.
package stream
