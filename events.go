package tiktok

// Event names sent on the collection stream.
const (
	EventProgress = "progress"
	EventLog      = "log"
	EventComplete = "complete"
	EventError    = "error"
)

// Event is one frame of a collection stream. Data is one of ProgressData,
// LogData, CompleteData or ErrorData.
type Event struct {
	Name string
	Data any
}

// Terminal reports whether no further events follow this one.
func (e Event) Terminal() bool {
	return e.Name == EventComplete || e.Name == EventError
}

type ProgressData struct {
	Count int `json:"count"`
	New   int `json:"new"`
}

type LogData struct {
	Message string `json:"message"`
}

type CompleteData struct {
	Username    string           `json:"username"`
	SecUID      string           `json:"secUid,omitempty"`
	TotalVideos int              `json:"totalVideos"`
	FetchedAt   string           `json:"fetchedAt"`
	Videos      []CollectedVideo `json:"videos"`
}

type ErrorData struct {
	Message string `json:"message"`
}

// EventSink receives the events of one collection. Emit may be called from
// more than one goroutine. A non-nil error means the consumer is gone and the
// collection should stop.
type EventSink interface {
	Emit(Event) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event) error

func (f EventSinkFunc) Emit(e Event) error { return f(e) }
