package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/junghee-19/SignLink/pkg/provider/landmark"
	translatemock "github.com/junghee-19/SignLink/pkg/provider/translate/mock"
)

// fakePose is a scriptable pose adapter.
type fakePose struct {
	mu      sync.Mutex
	text    string
	err     error
	block   chan struct{}
	calls   int
	lastRaw []byte
}

func (f *fakePose) Predict(ctx context.Context, jpeg []byte) (string, error) {
	f.mu.Lock()
	f.calls++
	f.lastRaw = jpeg
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

func (f *fakePose) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeLandmarks is a scriptable landmark adapter that counts fetches.
type fakeLandmarks struct {
	mu    sync.Mutex
	err   error
	block chan struct{}
	calls int
}

func (f *fakeLandmarks) Fetch(ctx context.Context, sign string) (*landmark.Template, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &landmark.Template{
		Sign:    sign,
		Alias:   sign,
		Average: []landmark.Point{{ID: 0, X: 0.1, Y: 0.2, Z: 0.3}},
	}, nil
}

func (f *fakeLandmarks) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// harness bundles a controller with its fakes and an overlay channel.
type harness struct {
	c          *Controller
	pose       *fakePose
	translator *translatemock.Translator
	landmarks  *fakeLandmarks
	overlays   chan Overlay
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		pose:       &fakePose{},
		translator: &translatemock.Translator{},
		landmarks:  &fakeLandmarks{},
		overlays:   make(chan Overlay, 16),
	}
	h.c = New(Config{
		Pose:          h.pose,
		Translator:    h.translator,
		Landmarks:     h.landmarks,
		CaptureDelay:  -1,
		NotifyOverlay: func(o Overlay) { h.overlays <- o },
	})
	t.Cleanup(h.c.Close)
	return h
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

// waitOverlay receives one overlay or fails.
func (h *harness) waitOverlay(t *testing.T) Overlay {
	t.Helper()
	select {
	case o := <-h.overlays:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("no overlay delivered")
		return Overlay{}
	}
}

func TestSendMessage_QueuesMatchedSigns(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.translator.TextToSignReply = "네, 반가워요"

	h.c.SendMessage(context.Background(), "오늘 날씨가 좋네요 안녕하세요")

	snap := h.c.Snapshot()
	if len(snap.Messages) != 1 || snap.Messages[0].Sender != SenderUser {
		t.Fatalf("messages = %+v, want one user message", snap.Messages)
	}
	if len(snap.Queue) != 1 || snap.Queue[0] != "hello" {
		t.Errorf("queue = %v, want [hello]", snap.Queue)
	}
	if snap.Status != "네, 반가워요" {
		t.Errorf("status = %q, want translator reply", snap.Status)
	}
	if len(snap.Sources) == 0 {
		t.Error("snapshot has no video sources for the queue head")
	}
}

func TestSendMessage_BlankInputIgnored(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.c.SendMessage(context.Background(), "   \n\t ")

	snap := h.c.Snapshot()
	if len(snap.Messages) != 0 {
		t.Errorf("messages = %+v, want none", snap.Messages)
	}
	if got := len(h.translator.TextToSignCalls); got != 0 {
		t.Errorf("translator calls = %d, want 0", got)
	}
}

func TestSendMessage_ReleasesWebcamKeepsQueue(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.c.ToggleWebcam()

	h.c.SendMessage(context.Background(), "안녕하세요")

	snap := h.c.Snapshot()
	if snap.WebcamOn {
		t.Error("webcam still on after sending a message")
	}
	if len(snap.Queue) != 1 || snap.Queue[0] != "hello" {
		t.Errorf("queue = %v, want [hello]", snap.Queue)
	}
}

func TestSendMessage_TranslatorErrorDegrades(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.translator.TextToSignErr = context.DeadlineExceeded

	h.c.SendMessage(context.Background(), "기타")

	snap := h.c.Snapshot()
	if len(snap.Queue) != 0 {
		t.Errorf("queue = %v, want empty for unmatched text", snap.Queue)
	}
	if snap.Status != statusTranslateFailed {
		t.Errorf("status = %q, want fallback caption", snap.Status)
	}

	// The session must stay interactive after a translator failure.
	h.translator.TextToSignErr = nil
	h.translator.TextToSignReply = "반가워요"
	h.c.SendMessage(context.Background(), "안녕하세요")
	snap = h.c.Snapshot()
	if len(snap.Messages) != 2 {
		t.Errorf("messages = %d, want 2", len(snap.Messages))
	}
	if snap.Status != "반가워요" {
		t.Errorf("status = %q, want fresh reply", snap.Status)
	}
}

func TestSendMessage_FilteredRepliesDropped(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		reply string
	}{
		{"error prefixed", "오류: 모델 호출 실패"},
		{"ignore prefixed", "죄송하지만 도와드릴 수 없어요"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			h.translator.TextToSignReply = tt.reply

			h.c.SendMessage(context.Background(), "기타")

			if snap := h.c.Snapshot(); snap.Status != "" {
				t.Errorf("status = %q, want empty", snap.Status)
			}
		})
	}
}

func TestCapture_AppendsPoseThenReply(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.pose.text = "안녕하세요 배부르네요"
	h.translator.SignToTextReply = "식사 맛있게 하셨군요"

	h.c.CaptureAndTranslate(context.Background(), []byte{0xff, 0xd8})

	snap := h.c.Snapshot()
	if len(snap.Messages) != 2 {
		t.Fatalf("messages = %+v, want 2", snap.Messages)
	}
	if snap.Messages[0].Sender != SenderUser || snap.Messages[0].Text != "안녕하세요 배부르네요" {
		t.Errorf("first message = %+v, want the recognized utterance", snap.Messages[0])
	}
	if snap.Messages[1].Sender != SenderAssistant {
		t.Errorf("second message sender = %q, want assistant", snap.Messages[1].Sender)
	}
	if snap.Messages[0].ID >= snap.Messages[1].ID {
		t.Error("message IDs are not monotonic")
	}
	// Both matched keywords are queued in text order.
	if len(snap.Queue) != 2 || snap.Queue[0] != "hello" || snap.Queue[1] != "full" {
		t.Errorf("queue = %v, want [hello full]", snap.Queue)
	}
	if snap.Processing {
		t.Error("processing flag still set after capture finished")
	}
}

func TestCapture_NoopWhileProcessing(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.pose.text = "안녕하세요"
	h.pose.block = make(chan struct{})

	go h.c.CaptureAndTranslate(context.Background(), []byte{1})
	waitFor(t, func() bool { return h.c.Snapshot().Processing })

	// Re-entry while the first capture is in flight must change nothing.
	h.c.CaptureAndTranslate(context.Background(), []byte{2})
	if got := h.pose.callCount(); got != 1 {
		t.Errorf("pose calls = %d, want 1", got)
	}

	close(h.pose.block)
	waitFor(t, func() bool { return !h.c.Snapshot().Processing })

	snap := h.c.Snapshot()
	if len(snap.Messages) != 1 {
		t.Errorf("messages = %+v, want exactly one from the first capture", snap.Messages)
	}
}

func TestCapture_PoseErrorDegrades(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.pose.err = context.DeadlineExceeded
	h.translator.SignToTextReply = ""

	h.c.CaptureAndTranslate(context.Background(), []byte{1})

	snap := h.c.Snapshot()
	if len(snap.Messages) != 0 {
		t.Errorf("messages = %+v, want none", snap.Messages)
	}
	if snap.Status != statusPoseFailed {
		t.Errorf("status = %q, want pose fallback caption", snap.Status)
	}
	if snap.Processing {
		t.Error("processing flag still set")
	}

	// Still interactive.
	h.c.SendMessage(context.Background(), "안녕하세요")
	if snap := h.c.Snapshot(); len(snap.Messages) != 1 {
		t.Error("session not interactive after pose failure")
	}
}

func TestCapture_TranslateErrorKeepsPoseMessage(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.pose.text = "기타"
	h.translator.SignToTextErr = context.DeadlineExceeded

	h.c.CaptureAndTranslate(context.Background(), []byte{1})

	snap := h.c.Snapshot()
	if len(snap.Messages) != 1 || snap.Messages[0].Text != "기타" || snap.Messages[0].Sender != SenderUser {
		t.Errorf("messages = %+v, want exactly the recognized gesture", snap.Messages)
	}
	if snap.Status != statusTranslateFailed {
		t.Errorf("status = %q, want translate fallback caption", snap.Status)
	}
	if snap.Processing {
		t.Error("processing flag still set")
	}

	// Still interactive.
	h.c.SendMessage(context.Background(), "잘 지냈어요")
	if snap := h.c.Snapshot(); len(snap.Messages) != 2 {
		t.Error("session not interactive after translate failure")
	}
}

func TestCapture_ErrorPrefixedPoseSkipped(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.pose.text = "오류: 손이 감지되지 않았습니다"
	h.translator.SignToTextReply = "다시 한 번 보여주세요"

	h.c.CaptureAndTranslate(context.Background(), []byte{1})

	snap := h.c.Snapshot()
	if len(snap.Messages) != 1 || snap.Messages[0].Sender != SenderAssistant {
		t.Errorf("messages = %+v, want only the assistant reply", snap.Messages)
	}
	if strings.Contains(snap.Messages[0].Text, "오류") {
		t.Errorf("error-prefixed text leaked into the chat log: %q", snap.Messages[0].Text)
	}
}

func TestToggleWebcam_OffClearsQueue(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.c.SendMessage(context.Background(), "안녕하세요")
	if snap := h.c.Snapshot(); len(snap.Queue) != 1 {
		t.Fatalf("queue = %v, want one entry", snap.Queue)
	}

	h.c.ToggleWebcam()
	if snap := h.c.Snapshot(); !snap.WebcamOn {
		t.Fatal("webcam not on after toggle")
	}
	h.c.ToggleWebcam()

	snap := h.c.Snapshot()
	if snap.WebcamOn {
		t.Error("webcam still on")
	}
	if len(snap.Queue) != 0 {
		t.Errorf("queue = %v, want empty after toggling off", snap.Queue)
	}
}

func TestWebcamError_ShownAndCleared(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.c.ToggleWebcam()

	h.c.WebcamError("permission denied")
	snap := h.c.Snapshot()
	if snap.WebcamOn {
		t.Error("webcam still on after failure")
	}
	if snap.Error != "permission denied" {
		t.Errorf("error = %q", snap.Error)
	}

	h.c.ToggleWebcam()
	if snap := h.c.Snapshot(); snap.Error != "" {
		t.Errorf("error = %q, want cleared on retry", snap.Error)
	}
}

func TestPlaybackEnded_AdvancesQueue(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.c.SendMessage(context.Background(), "안녕하세요 배부르네요")

	snap := h.c.Snapshot()
	if len(snap.Queue) != 2 {
		t.Fatalf("queue = %v, want 2 entries", snap.Queue)
	}

	h.c.PlaybackEnded()
	snap = h.c.Snapshot()
	if snap.Head() != "full" {
		t.Errorf("head = %q, want full", snap.Head())
	}
	if len(snap.Sources) == 0 {
		t.Error("no sources for new head")
	}

	h.c.PlaybackEnded()
	snap = h.c.Snapshot()
	if len(snap.Queue) != 0 {
		t.Errorf("queue = %v, want empty", snap.Queue)
	}
	if len(snap.Sources) != 0 {
		t.Errorf("sources = %v, want none for empty queue", snap.Sources)
	}

	// Popping an empty queue is harmless.
	h.c.PlaybackEnded()
}

func TestOverlay_DeliveredForHead(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.c.SendMessage(context.Background(), "안녕하세요")

	o := h.waitOverlay(t)
	if o.Sign != "hello" {
		t.Errorf("overlay sign = %q, want hello", o.Sign)
	}
	if len(o.Points) != 1 {
		t.Errorf("overlay points = %v", o.Points)
	}
}

func TestOverlay_CacheHitSkipsFetch(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.c.SendMessage(context.Background(), "안녕하세요")
	h.waitOverlay(t)
	if got := h.landmarks.callCount(); got != 1 {
		t.Fatalf("fetches = %d, want 1", got)
	}

	h.c.PlaybackEnded()
	h.c.SendMessage(context.Background(), "안녕하세요")

	o := h.waitOverlay(t)
	if o.Sign != "hello" {
		t.Errorf("overlay sign = %q, want hello", o.Sign)
	}
	if got := h.landmarks.callCount(); got != 1 {
		t.Errorf("fetches = %d, want 1 (cache hit)", got)
	}
}

func TestOverlay_FetchFailureIsSilent(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.landmarks.err = context.DeadlineExceeded

	h.c.SendMessage(context.Background(), "안녕하세요")
	waitFor(t, func() bool { return h.landmarks.callCount() == 1 })

	// No overlay, no user-visible error; playback continues on the queue.
	select {
	case o := <-h.overlays:
		t.Fatalf("unexpected overlay %+v", o)
	case <-time.After(50 * time.Millisecond):
	}
	snap := h.c.Snapshot()
	if snap.Error != "" {
		t.Errorf("error = %q, want empty", snap.Error)
	}
	if len(snap.Queue) != 1 {
		t.Errorf("queue = %v, want the clip still playing", snap.Queue)
	}
}

func TestOverlay_StaleFetchAfterQueueAdvanceDiscarded(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.landmarks.block = make(chan struct{})

	h.c.SendMessage(context.Background(), "안녕하세요")
	waitFor(t, func() bool { return h.landmarks.callCount() == 1 })

	// The clip finishes while the fetch is still in flight.
	h.c.PlaybackEnded()

	close(h.landmarks.block)
	select {
	case o := <-h.overlays:
		t.Fatalf("stale overlay delivered: %+v", o)
	case <-time.After(100 * time.Millisecond):
	}

	// The discarded result was not cached either: replaying the sign goes
	// back to the adapter and delivers a fresh overlay.
	h.c.SendMessage(context.Background(), "안녕하세요")
	waitFor(t, func() bool { return h.landmarks.callCount() == 2 })
	if o := h.waitOverlay(t); o.Sign != "hello" {
		t.Errorf("overlay sign = %q, want hello", o.Sign)
	}
}

func TestOverlay_StaleFetchAfterCloseDiscarded(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.landmarks.block = make(chan struct{})

	h.c.SendMessage(context.Background(), "안녕하세요")
	waitFor(t, func() bool { return h.landmarks.callCount() == 1 })

	h.c.Close()

	close(h.landmarks.block)
	select {
	case o := <-h.overlays:
		t.Fatalf("overlay delivered after close: %+v", o)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClose_StopsDispatch(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.c.SendMessage(context.Background(), "안녕하세요")
	h.c.Close()

	h.c.SendMessage(context.Background(), "배부르네요")
	h.c.ToggleWebcam()

	snap := h.c.Snapshot()
	if len(snap.Messages) != 1 {
		t.Errorf("messages = %d, want 1 (no appends after Close)", len(snap.Messages))
	}
	if snap.WebcamOn {
		t.Error("webcam toggled after Close")
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	t.Parallel()
	s := State{Queue: []string{"hello"}, Messages: []Message{{ID: 1, Text: "hi", Sender: SenderUser}}}

	_ = Apply(s, SignsQueued{Signs: []string{"full"}})
	_ = Apply(s, PlaybackEnded{})
	_ = Apply(s, MessageAppended{Message: Message{ID: 2}})

	if len(s.Queue) != 1 || s.Queue[0] != "hello" {
		t.Errorf("input queue mutated: %v", s.Queue)
	}
	if len(s.Messages) != 1 {
		t.Errorf("input messages mutated: %v", s.Messages)
	}
}
