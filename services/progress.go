package services

import "log"

// ProgressEvent is a structured progress signal emitted while harvesting.
// Percent is 0–100 within the current operation.
type ProgressEvent struct {
	Percent int
	Message string
}

// ProgressSink receives harvest/sync progress. Implementations must not
// block; events are advisory and may be dropped.
type ProgressSink interface {
	Progress(ev ProgressEvent)
}

// ProgressFunc adapts a function to a ProgressSink.
type ProgressFunc func(ev ProgressEvent)

func (f ProgressFunc) Progress(ev ProgressEvent) { f(ev) }

// LogProgress writes events to the process log. The default sink when no
// presentation layer is attached.
var LogProgress ProgressSink = ProgressFunc(func(ev ProgressEvent) {
	log.Printf("📶 [PROGRESS] %3d%% %s", ev.Percent, ev.Message)
})
