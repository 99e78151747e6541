package web

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/sump-sensor/internal/pump"
	"github.com/sweeney/sump-sensor/internal/status"
)

func startServer(t *testing.T, tracker *status.Tracker) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := New("", tracker)
	go srv.Serve(ln)
	t.Cleanup(func() { ln.Close() })

	return "http://" + ln.Addr().String()
}

func get(t *testing.T, url string) (int, string, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, resp.Header.Get("Content-Type"), string(body)
}

func newTracker() *status.Tracker {
	return status.NewTracker(time.Now(), status.Config{
		PeriodMs:   50,
		ListenAddr: ":10000",
		HTTPAddr:   ":8080",
	})
}

func TestIndexHTML(t *testing.T) {
	tracker := newTracker()
	tracker.Update(pump.State{Active: true, Stamp: 150}, status.Counts{PumpOn: 1})
	tracker.SetClient(true, "192.168.1.50:40000")
	base := startServer(t, tracker)

	code, ctype, body := get(t, base+"/")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !strings.HasPrefix(ctype, "text/html") {
		t.Errorf("unexpected content type: %s", ctype)
	}
	for _, want := range []string{"Sump Sensor", ">on<", "192.168.1.50:40000"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestIndexJSON(t *testing.T) {
	tracker := newTracker()
	tracker.Update(pump.State{Active: false, Stamp: 250}, status.Counts{PumpOff: 1})
	base := startServer(t, tracker)

	code, ctype, body := get(t, base+"/index.json")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !strings.HasPrefix(ctype, "application/json") {
		t.Errorf("unexpected content type: %s", ctype)
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Pump != "off" || parsed.Status.LastChangeMs != 250 {
		t.Errorf("unexpected status: %+v", parsed.Status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	base := startServer(t, newTracker())

	code, _, body := get(t, base+"/metrics")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	// The default registry always carries the Go runtime collectors.
	if !strings.Contains(body, "go_goroutines") {
		t.Error("metrics output missing runtime collectors")
	}
}

func TestUnknownPathIs404(t *testing.T) {
	base := startServer(t, newTracker())

	code, _, _ := get(t, base+"/nope")
	if code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}
