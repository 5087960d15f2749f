package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/junghee-19/SignLink/internal/landmarks"
	"github.com/junghee-19/SignLink/internal/session"
	"github.com/junghee-19/SignLink/internal/transcript"
	"github.com/junghee-19/SignLink/pkg/provider/landmark"
	translatemock "github.com/junghee-19/SignLink/pkg/provider/translate/mock"
)

// stubLandmarks satisfies the session's landmark adapter without network I/O.
type stubLandmarks struct{}

func (stubLandmarks) Fetch(_ context.Context, sign string) (*landmark.Template, error) {
	return &landmark.Template{
		Sign:    sign,
		Average: []landmark.Point{{ID: 0, X: 0.5, Y: 0.5, Z: 0.0}},
	}, nil
}

func points(n int, v float64) []landmark.Point {
	out := make([]landmark.Point, n)
	for i := range out {
		out[i] = landmark.Point{ID: i, X: v, Y: v, Z: v}
	}
	return out
}

// newTestServer builds a Server over an in-memory template store.
func newTestServer(t *testing.T, translator *translatemock.Translator) (*httptest.Server, *transcript.MemStore) {
	t.Helper()

	store := landmarks.NewMemStore()
	ctx := context.Background()
	if err := store.Put(ctx, &landmark.Template{Sign: "hello", Average: points(21, 0.2)}); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, &landmark.Template{Sign: "full", Average: points(21, 0.8)}); err != nil {
		t.Fatal(err)
	}

	transcripts := transcript.NewMemStore()
	if translator == nil {
		translator = &translatemock.Translator{}
	}
	srv := New(Config{
		Session: session.Config{
			Translator:   translator,
			Landmarks:    stubLandmarks{},
			CaptureDelay: -1,
		},
		Templates:      store,
		Transcripts:    transcripts,
		OriginPatterns: []string{"*"},
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, transcripts
}

func TestLandmarksEndpoint(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/landmarks/hello")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body landmarkResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Sign != "hello" || len(body.Average) != 21 {
		t.Errorf("body = %+v", body)
	}
}

func TestLandmarksEndpoint_UnknownSignSuggests(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/landmarks/helo")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}

	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Suggestion != "hello" {
		t.Errorf("suggestion = %q, want hello", body.Suggestion)
	}
}

func TestClassifyEndpoint(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t, nil)

	post := func(body string) (*http.Response, error) {
		return http.Post(ts.URL+"/classify", "application/json", strings.NewReader(body))
	}

	req := classifyRequest{Points: points(21, 0.25)}
	data, _ := json.Marshal(req)
	resp, err := post(string(data))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Sign != "hello" {
		t.Errorf("sign = %q, want hello", got.Sign)
	}

	// Length mismatch cannot match any template.
	req = classifyRequest{Points: points(5, 0.25)}
	data, _ = json.Marshal(req)
	resp, err = post(string(data))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("mismatched length status = %d, want 404", resp.StatusCode)
	}

	// Malformed and empty bodies are client errors.
	for _, body := range []string{"{", `{"points":[]}`} {
		resp, err = post(body)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestWebSocketSession(t *testing.T) {
	t.Parallel()
	translator := &translatemock.Translator{TextToSignReply: "반가워요"}
	ts, transcripts := newTestServer(t, translator)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// The first event is the initial empty snapshot.
	var ev serverEvent
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read initial state: %v", err)
	}
	if ev.Type != "state" || ev.State == nil || len(ev.State.Messages) != 0 {
		t.Fatalf("initial event = %+v", ev)
	}

	if err := wsjson.Write(ctx, conn, clientEvent{Type: "chat", Text: "안녕하세요"}); err != nil {
		t.Fatalf("write chat: %v", err)
	}

	// Read until the snapshot reflects the queued sign and the translator
	// reply. Overlay events may interleave.
	var gotOverlay bool
	deadline := time.After(4 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("snapshot with queue and reply never arrived")
		default:
		}
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			t.Fatalf("read: %v", err)
		}
		if ev.Type == "overlay" {
			if ev.Overlay == nil || ev.Overlay.Sign != "hello" {
				t.Fatalf("overlay event = %+v", ev)
			}
			gotOverlay = true
			continue
		}
		st := ev.State
		if st != nil && len(st.Messages) == 1 && len(st.Queue) == 1 && st.Status == "반가워요" {
			if st.Queue[0] != "hello" {
				t.Fatalf("queue = %v", st.Queue)
			}
			if len(st.Sources) == 0 {
				t.Error("snapshot missing video sources")
			}
			break
		}
	}

	// Finish playback and observe the queue drain.
	if err := wsjson.Write(ctx, conn, clientEvent{Type: "playback_ended"}); err != nil {
		t.Fatal(err)
	}
	for {
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			t.Fatalf("read after playback_ended: %v", err)
		}
		if ev.Type == "overlay" {
			gotOverlay = true
			continue
		}
		if len(ev.State.Queue) == 0 {
			break
		}
	}
	_ = gotOverlay

	// The chat message was persisted under some session ID.
	ids, err := transcripts.Sessions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 {
		t.Fatalf("sessions = %v, want one", ids)
	}
	msgs, err := transcripts.Messages(context.Background(), ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Text != "안녕하세요" {
		t.Errorf("transcript = %+v", msgs)
	}
}

func TestWebSocketWebcamToggle(t *testing.T) {
	t.Parallel()
	ts, _ := newTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	var ev serverEvent
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatal(err)
	}

	if err := wsjson.Write(ctx, conn, clientEvent{Type: "webcam"}); err != nil {
		t.Fatal(err)
	}
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.State == nil || !ev.State.WebcamOn {
		t.Fatalf("event after toggle = %+v, want webcam on", ev)
	}

	if err := wsjson.Write(ctx, conn, clientEvent{Type: "webcam_error", Reason: "permission denied"}); err != nil {
		t.Fatal(err)
	}
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.State.WebcamOn || ev.State.Error != "permission denied" {
		t.Fatalf("event after webcam_error = %+v", ev)
	}
}
