package healthcheck

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
)

func TestNormalizeListen(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"  ", ""},
		{"8081", ":8081"},
		{":8081", ":8081"},
		{"127.0.0.1:8081", "127.0.0.1:8081"},
	}
	for _, c := range cases {
		if got := NormalizeListen(c.in); got != c.want {
			t.Errorf("NormalizeListen(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestStartServerServesHealthz(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv, err := StartServer(ctx, nil, "127.0.0.1:0", "ntchat")
	if err != nil {
		t.Fatalf("StartServer: %v", err)
	}
	defer func() { _ = srv.Close() }()

	resp, err := http.Get("http://" + srv.Addr + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["status"] != "ok" || out["component"] != "ntchat" {
		t.Fatalf("unexpected body: %v", out)
	}
}
