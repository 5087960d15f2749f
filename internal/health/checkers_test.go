package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestPingChecker(t *testing.T) {
	c := PingChecker("template_store", fakePinger{})
	if c.Name != "template_store" {
		t.Errorf("name = %q", c.Name)
	}
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("Check = %v, want nil", err)
	}

	c = PingChecker("template_store", fakePinger{err: errors.New("down")})
	if err := c.Check(context.Background()); err == nil {
		t.Error("Check = nil, want error")
	}
}

func TestEndpointChecker(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"ok", http.StatusOK, false},
		{"not found still reachable", http.StatusNotFound, false},
		{"server error", http.StatusInternalServerError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := EndpointChecker("pose_backend", srv.URL, srv.Client())
			err := c.Check(context.Background())
			if tt.wantErr && err == nil {
				t.Error("Check = nil, want error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Check = %v, want nil", err)
			}
		})
	}
}

func TestEndpointChecker_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := EndpointChecker("pose_backend", url, nil)
	err := c.Check(context.Background())
	if err == nil {
		t.Fatal("Check = nil, want error")
	}
	if !strings.Contains(err.Error(), "unreachable") {
		t.Errorf("err = %v, want unreachable", err)
	}
}
