package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/junghee-19/SignLink/internal/observe"
	"github.com/junghee-19/SignLink/internal/vocab"
	"github.com/junghee-19/SignLink/pkg/provider/landmark"
	"github.com/junghee-19/SignLink/pkg/provider/translate"
)

// Default prefixes for soft-failure filtering of translator replies. The
// ignore prefix mirrors the upstream behaviour of dropping apologetic
// refusals instead of showing them as captions.
const (
	defaultErrorPrefix  = "오류"
	defaultIgnorePrefix = "죄송하지만"
)

// defaultCaptureDelay is the user-facing pacing pause before a capture is
// processed.
const defaultCaptureDelay = 2 * time.Second

// overlayFetchTimeout bounds the background landmark fetch.
const overlayFetchTimeout = 10 * time.Second

// Status captions for degraded adapter calls.
const (
	statusPoseFailed      = "동작을 인식하지 못했어요. 다시 시도해 주세요."
	statusTranslateFailed = "번역에 실패했어요. 잠시 후 다시 시도해 주세요."
)

// PoseClient is the slice of the pose adapter the controller needs.
type PoseClient interface {
	Predict(ctx context.Context, jpeg []byte) (string, error)
}

// LandmarkClient is the slice of the landmark adapter the controller needs.
type LandmarkClient interface {
	Fetch(ctx context.Context, sign string) (*landmark.Template, error)
}

// Config carries the Controller's dependencies.
type Config struct {
	Pose       PoseClient
	Translator translate.Translator
	Landmarks  LandmarkClient
	Vocabulary *vocab.Table

	// Metrics may be nil; adapter calls are then not instrumented.
	Metrics *observe.Metrics

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// CaptureDelay is the pacing pause before a capture is processed.
	// Zero means the default; negative disables the pause (tests).
	CaptureDelay time.Duration

	// ErrorPrefix marks translator replies treated as soft failures.
	ErrorPrefix string

	// IgnorePrefix marks translator replies silently dropped from the
	// status caption.
	IgnorePrefix string

	// Notify receives a snapshot after every state transition. May be nil.
	Notify func(Snapshot)

	// NotifyOverlay receives the landmark overlay for the playing sign.
	// May be nil.
	NotifyOverlay func(Overlay)
}

// Controller owns one chat session. All exported methods are safe for
// concurrent use; the state is only ever touched under the mutex and only
// through Apply.
type Controller struct {
	mu     sync.Mutex
	state  State
	cache  map[string][]landmark.Point
	gen    int64
	lastID int64
	closed bool

	pose       PoseClient
	translator translate.Translator
	landmarks  LandmarkClient
	vocabulary *vocab.Table
	metrics    *observe.Metrics
	log        *slog.Logger

	captureDelay  time.Duration
	errorPrefix   string
	ignorePrefix  string
	notify        func(Snapshot)
	notifyOverlay func(Overlay)
}

// New creates a Controller for a fresh session.
func New(cfg Config) *Controller {
	c := &Controller{
		cache:         make(map[string][]landmark.Point),
		pose:          cfg.Pose,
		translator:    cfg.Translator,
		landmarks:     cfg.Landmarks,
		vocabulary:    cfg.Vocabulary,
		metrics:       cfg.Metrics,
		log:           cfg.Logger,
		captureDelay:  cfg.CaptureDelay,
		errorPrefix:   cfg.ErrorPrefix,
		ignorePrefix:  cfg.IgnorePrefix,
		notify:        cfg.Notify,
		notifyOverlay: cfg.NotifyOverlay,
	}
	if c.vocabulary == nil {
		c.vocabulary = vocab.Default()
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.captureDelay == 0 {
		c.captureDelay = defaultCaptureDelay
	}
	if c.captureDelay < 0 {
		c.captureDelay = 0
	}
	if c.errorPrefix == "" {
		c.errorPrefix = defaultErrorPrefix
	}
	if c.ignorePrefix == "" {
		c.ignorePrefix = defaultIgnorePrefix
	}
	return c
}

// Snapshot returns the current session snapshot.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// snapshotLocked builds a Snapshot from the current state.
func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{State: c.state.Clone()}
	if head := c.state.Head(); head != "" {
		snap.Sources = c.vocabulary.Sources(head)
	}
	return snap
}

// Close marks the session as torn down. In-flight overlay fetches resolve
// against the bumped generation and are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.gen++
}

// ToggleWebcam flips the webcam state. Turning the camera off clears the
// playback queue; the client releases the media stream in response to the
// pushed snapshot.
func (c *Controller) ToggleWebcam() {
	c.dispatch(WebcamToggled{})
}

// WebcamError records a camera acquisition failure reported by the client.
// The error string is shown inline and the webcam stays off.
func (c *Controller) WebcamError(reason string) {
	c.dispatch(WebcamFailed{Reason: reason})
}

// PlaybackEnded pops the finished clip off the queue and advances playback.
func (c *Controller) PlaybackEnded() {
	c.dispatch(PlaybackEnded{})
}

// SendMessage appends the typed text as a user message, queues any matched
// sign clips, releases the webcam if it is live, and asks the translator for
// a text-to-sign caption. Translator failures degrade to a fallback caption;
// error-prefixed and ignore-prefixed replies are dropped silently.
func (c *Controller) SendMessage(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	signs := c.vocabulary.Match(text)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	evs := []Event{MessageAppended{Message: c.newMessageLocked(text, SenderUser)}}
	if len(signs) > 0 {
		evs = append(evs, SignsQueued{Signs: signs})
	}
	if c.state.WebcamOn {
		evs = append(evs, WebcamReleased{})
	}
	snap, overlayHead, gen := c.applyLocked(evs...)
	c.mu.Unlock()
	c.push(snap, overlayHead, gen)
	c.metrics.RecordMessage(ctx, string(SenderUser))
	c.metrics.RecordSignsQueued(ctx, len(signs))

	reply, err := c.translateTextToSign(ctx, text)
	switch {
	case err != nil:
		c.log.Warn("text-to-sign translation failed", "err", err)
		c.dispatch(StatusSet{Text: statusTranslateFailed})
	case reply == "" || c.isErrorReply(reply) || c.isIgnoredReply(reply):
		// Soft failure: nothing to show.
	default:
		c.dispatch(StatusSet{Text: reply})
	}
}

// CaptureAndTranslate processes one webcam frame: after the pacing delay it
// calls the pose adapter and then the sign-to-text translator, appending each
// usable result to the chat log and scanning it for sign keywords. The call
// is a no-op while a previous capture is still processing. Adapter failures
// degrade to a fallback caption and never abort the other call.
func (c *Controller) CaptureAndTranslate(ctx context.Context, frame []byte) {
	c.mu.Lock()
	if c.closed || c.state.Processing {
		c.mu.Unlock()
		return
	}
	snap, overlayHead, gen := c.applyLocked(ProcessingSet{On: true})
	c.mu.Unlock()
	c.push(snap, overlayHead, gen)
	defer c.dispatch(ProcessingSet{On: false})

	if !c.pause(ctx) {
		return
	}

	poseText, err := c.predictPose(ctx, frame)
	if err != nil {
		c.log.Warn("pose prediction failed", "err", err)
		c.dispatch(StatusSet{Text: statusPoseFailed})
	} else if poseText != "" && !c.isErrorReply(poseText) {
		c.appendAndScan(poseText, SenderUser)
	}

	reply, err := c.translateSignToText(ctx, poseText)
	if err != nil {
		c.log.Warn("sign-to-text translation failed", "err", err)
		c.dispatch(StatusSet{Text: statusTranslateFailed})
	} else if reply != "" && !c.isErrorReply(reply) {
		c.appendAndScan(reply, SenderAssistant)
	}
}

// pause waits the configured capture delay. Reports false when ctx ended
// before the delay elapsed.
func (c *Controller) pause(ctx context.Context) bool {
	if c.captureDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(c.captureDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// appendAndScan appends text as a chat message and queues matched signs.
func (c *Controller) appendAndScan(text string, sender Sender) {
	signs := c.vocabulary.Match(text)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	evs := []Event{MessageAppended{Message: c.newMessageLocked(text, sender)}}
	if len(signs) > 0 {
		evs = append(evs, SignsQueued{Signs: signs})
	}
	snap, overlayHead, gen := c.applyLocked(evs...)
	c.mu.Unlock()
	c.push(snap, overlayHead, gen)
	c.metrics.RecordMessage(context.Background(), string(sender))
	c.metrics.RecordSignsQueued(context.Background(), len(signs))
}

// dispatch applies events and pushes the resulting snapshot.
func (c *Controller) dispatch(evs ...Event) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	snap, overlayHead, gen := c.applyLocked(evs...)
	c.mu.Unlock()
	c.push(snap, overlayHead, gen)
}

// applyLocked runs events through Apply, tracks queue-head changes for the
// overlay effect, and returns the snapshot to push. overlayHead is non-empty
// when the head changed to a playable sign.
func (c *Controller) applyLocked(evs ...Event) (snap Snapshot, overlayHead string, gen int64) {
	prevHead := c.state.Head()
	for _, ev := range evs {
		c.state = Apply(c.state, ev)
	}
	head := c.state.Head()
	if head != prevHead {
		c.gen++
		if head != "" {
			overlayHead = head
		}
	}
	return c.snapshotLocked(), overlayHead, c.gen
}

// push delivers the snapshot and kicks the overlay effect for a new head.
func (c *Controller) push(snap Snapshot, overlayHead string, gen int64) {
	if c.notify != nil {
		c.notify(snap)
	}
	if overlayHead != "" {
		c.fetchOverlay(overlayHead, gen)
	}
}

// fetchOverlay resolves the landmark overlay for sign: from the cache when
// possible, otherwise via a background fetch. The generation captured at
// trigger time guards the commit — a session that closed or moved to another
// clip while the fetch was in flight discards the result. The cache itself
// is never evicted, so a later replay of the same sign is a pure cache hit.
func (c *Controller) fetchOverlay(sign string, gen int64) {
	c.mu.Lock()
	if pts, ok := c.cache[sign]; ok {
		c.mu.Unlock()
		if c.notifyOverlay != nil {
			c.notifyOverlay(Overlay{Sign: sign, Points: pts})
		}
		return
	}
	c.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), overlayFetchTimeout)
		defer cancel()

		tpl, err := c.fetchLandmarks(ctx, sign)
		if err != nil {
			c.log.Warn("landmark fetch failed", "sign", sign, "err", err)
			return
		}
		pts := tpl.Average
		if pts == nil {
			pts = []landmark.Point{}
		}

		c.mu.Lock()
		if c.closed || c.gen != gen {
			c.mu.Unlock()
			return
		}
		c.cache[sign] = pts
		c.mu.Unlock()

		if c.notifyOverlay != nil {
			c.notifyOverlay(Overlay{Sign: sign, Points: pts})
		}
	}()
}

// newMessageLocked allocates the next monotonic, time-derived message ID.
func (c *Controller) newMessageLocked(text string, sender Sender) Message {
	id := time.Now().UnixMilli()
	if id <= c.lastID {
		id = c.lastID + 1
	}
	c.lastID = id
	return Message{ID: id, Text: text, Sender: sender}
}

// isErrorReply reports whether a reply is an error-prefixed soft failure.
func (c *Controller) isErrorReply(reply string) bool {
	return strings.HasPrefix(reply, c.errorPrefix)
}

// isIgnoredReply reports whether a reply starts with the ignore prefix.
func (c *Controller) isIgnoredReply(reply string) bool {
	return strings.HasPrefix(reply, c.ignorePrefix)
}

// ── Instrumented adapter calls ───────────────────────────────────────────────

func (c *Controller) predictPose(ctx context.Context, frame []byte) (string, error) {
	ctx, span := observe.StartSpan(ctx, "pose.predict")
	defer span.End()

	start := time.Now()
	text, err := c.pose.Predict(ctx, frame)
	c.metrics.RecordAdapter(ctx, "pose", time.Since(start), err)
	return text, err
}

func (c *Controller) translateSignToText(ctx context.Context, gesture string) (string, error) {
	ctx, span := observe.StartSpan(ctx, "translate.sign_to_text")
	defer span.End()

	start := time.Now()
	reply, err := c.translator.SignToText(ctx, gesture)
	c.metrics.RecordAdapter(ctx, "translate", time.Since(start), err)
	return reply, err
}

func (c *Controller) translateTextToSign(ctx context.Context, text string) (string, error) {
	ctx, span := observe.StartSpan(ctx, "translate.text_to_sign")
	defer span.End()

	start := time.Now()
	reply, err := c.translator.TextToSign(ctx, text)
	c.metrics.RecordAdapter(ctx, "translate", time.Since(start), err)
	return reply, err
}

func (c *Controller) fetchLandmarks(ctx context.Context, sign string) (*landmark.Template, error) {
	ctx, span := observe.StartSpan(ctx, "landmark.fetch")
	defer span.End()

	start := time.Now()
	tpl, err := c.landmarks.Fetch(ctx, sign)
	c.metrics.RecordAdapter(ctx, "landmark", time.Since(start), err)
	return tpl, err
}
