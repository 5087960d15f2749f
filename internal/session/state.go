// Package session implements the chat session: a serializable state struct,
// pure event transitions, and a Controller that orchestrates the pose,
// translation, and landmark adapters around that state.
//
// The split follows a strict rule: State is plain data and Apply never
// performs I/O, so every transition is deterministic and unit-testable. The
// Controller owns the adapters, feeds their results back in as events, and
// pushes a snapshot to its notify callback after every transition.
package session

import (
	"github.com/junghee-19/SignLink/internal/vocab"
	"github.com/junghee-19/SignLink/pkg/provider/landmark"
)

// Sender identifies who produced a chat message.
type Sender string

const (
	// SenderUser marks typed input and recognized sign utterances.
	SenderUser Sender = "user"

	// SenderAssistant marks translator replies.
	SenderAssistant Sender = "assistant"

	// SenderSystem marks inline notices such as camera errors.
	SenderSystem Sender = "system"
)

// Message is one entry in the append-only chat log. Entries are never
// mutated or deleted; insertion order is display order.
type Message struct {
	// ID is monotonic and time-derived; later messages always have larger IDs.
	ID     int64  `json:"id"`
	Text   string `json:"text"`
	Sender Sender `json:"sender"`
}

// State is the full serializable session state. The zero value is a valid
// idle session.
type State struct {
	// Messages is the append-only chat log.
	Messages []Message `json:"messages"`

	// WebcamOn reports whether the client's camera is active.
	WebcamOn bool `json:"webcam_on"`

	// Processing guards CaptureAndTranslate against re-entry.
	Processing bool `json:"processing"`

	// Queue holds pending sign clips; the head is the currently playing one.
	Queue []string `json:"queue"`

	// Status is the caption line under the playback area.
	Status string `json:"status,omitempty"`

	// Error is a user-visible inline error (camera failures).
	Error string `json:"error,omitempty"`
}

// Head returns the currently playing sign, or "" when the queue is empty.
func (s State) Head() string {
	if len(s.Queue) == 0 {
		return ""
	}
	return s.Queue[0]
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := s
	out.Messages = append([]Message(nil), s.Messages...)
	out.Queue = append([]string(nil), s.Queue...)
	return out
}

// Event is a state transition input. Events carry data only; all transition
// logic lives in Apply.
type Event interface{ isEvent() }

// MessageAppended appends one message to the chat log.
type MessageAppended struct{ Message Message }

// WebcamToggled flips the webcam flag. Turning it off clears the playback
// queue and the inline error.
type WebcamToggled struct{}

// WebcamReleased turns the webcam off without touching the queue. Used when
// sending a typed message while the camera is live.
type WebcamReleased struct{}

// WebcamFailed records a camera acquisition failure reported by the client.
type WebcamFailed struct{ Reason string }

// ProcessingSet sets the capture re-entry guard.
type ProcessingSet struct{ On bool }

// SignsQueued appends matched signs to the tail of the playback queue.
type SignsQueued struct{ Signs []string }

// PlaybackEnded pops the head of the playback queue.
type PlaybackEnded struct{}

// StatusSet replaces the status caption.
type StatusSet struct{ Text string }

func (MessageAppended) isEvent() {}
func (WebcamToggled) isEvent()   {}
func (WebcamReleased) isEvent()  {}
func (WebcamFailed) isEvent()    {}
func (ProcessingSet) isEvent()   {}
func (SignsQueued) isEvent()     {}
func (PlaybackEnded) isEvent()   {}
func (StatusSet) isEvent()       {}

// Apply returns the state after ev. It is a pure function: the input state
// is never mutated and no I/O happens here.
func Apply(s State, ev Event) State {
	out := s.Clone()
	switch e := ev.(type) {
	case MessageAppended:
		out.Messages = append(out.Messages, e.Message)
	case WebcamToggled:
		out.WebcamOn = !out.WebcamOn
		if !out.WebcamOn {
			out.Queue = nil
		}
		out.Error = ""
	case WebcamReleased:
		out.WebcamOn = false
	case WebcamFailed:
		out.WebcamOn = false
		out.Error = e.Reason
	case ProcessingSet:
		out.Processing = e.On
	case SignsQueued:
		out.Queue = append(out.Queue, e.Signs...)
	case PlaybackEnded:
		if len(out.Queue) > 0 {
			out.Queue = out.Queue[1:]
		}
	case StatusSet:
		out.Status = e.Text
	}
	return out
}

// Overlay is the landmark guide for the currently playing sign.
type Overlay struct {
	Sign   string           `json:"sign"`
	Points []landmark.Point `json:"points"`
}

// Snapshot is what the gateway pushes to the client after each transition:
// the state plus the video sources for the queue head.
type Snapshot struct {
	State
	Sources []vocab.Source `json:"sources,omitempty"`
}
