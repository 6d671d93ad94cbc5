package statsd

import (
	"net"
	"strings"
	"testing"
	"time"
)

func TestFormatTags(t *testing.T) {
	t.Parallel()

	tags := map[string]string{
		"path":   "poller",
		"result": " success ",
		"":       "ignored",
	}

	got := formatTags(tags)
	want := "|#path:poller,result:success"

	if got != want {
		t.Fatalf("formatTags mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestFormatTagsEmpty(t *testing.T) {
	t.Parallel()

	if got := formatTags(nil); got != "" {
		t.Fatalf("formatTags(nil) = %q, want empty string", got)
	}

	if got := formatTags(map[string]string{" ": "x"}); got != "" {
		t.Fatalf("formatTags with only blank keys = %q, want empty string", got)
	}
}

func TestClientDisabledIsNoOp(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{Enabled: false, Address: "127.0.0.1:8125"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	// Must not panic or dial anything.
	client.Count("jobs.created", 1, nil)
	client.Gauge("jobs.active", 2, nil)
	client.Timing("delivery.duration", time.Second, nil)

	if client.conn != nil {
		t.Fatal("disabled client should not hold a connection")
	}
}

func TestNilClientIsSafe(t *testing.T) {
	t.Parallel()

	var client *Client
	client.Count("jobs.created", 1, nil)
	client.Gauge("jobs.active", 2, nil)
	client.Timing("delivery.duration", time.Second, nil)
	if err := client.Close(); err != nil {
		t.Fatalf("Close on nil client returned %v", err)
	}
}

func TestClientEmitsLines(t *testing.T) {
	t.Parallel()

	server, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	defer func() {
		_ = server.Close()
	}()

	client, err := NewClient(Config{
		Enabled: true,
		Address: server.LocalAddr().String(),
		Prefix:  "genrelay.",
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	client.Count("jobs.created", 1, map[string]string{"model": "render-v2"})

	if err := server.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	buf := make([]byte, 512)
	n, _, err := server.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read udp: %v", err)
	}

	line := string(buf[:n])
	want := "genrelay.jobs.created:1|c|#model:render-v2"
	if line != want {
		t.Fatalf("metric line = %q, want %q", line, want)
	}
}

func TestWriteAfterClose(t *testing.T) {
	t.Parallel()

	server, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	defer func() {
		_ = server.Close()
	}()

	client, err := NewClient(Config{Enabled: true, Address: server.LocalAddr().String()})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close returned %v", err)
	}

	// Writes after close are dropped silently.
	client.Count("jobs.created", 1, nil)
}

func TestPrefixTrimming(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{Enabled: false, Prefix: " .genrelay. "})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if client.prefix != "genrelay" {
		t.Fatalf("prefix = %q, want %q", client.prefix, "genrelay")
	}
	if strings.Contains(client.prefix, " ") {
		t.Fatal("prefix should be trimmed")
	}
}
