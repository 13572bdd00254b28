package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"js-rec/internal/core/pipeline"
)

func records(urls ...string) []pipeline.Record {
	list := make([]pipeline.Record, 0, len(urls))
	for _, u := range urls {
		list = append(list, pipeline.Record{URL: u, Host: "test"})
	}
	return list
}

func urlsOf(recs []pipeline.Record) []string {
	list := make([]string, 0, len(recs))
	for _, r := range recs {
		list = append(list, r.URL)
	}
	return list
}

func TestProbeIdentity(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("unexpected method %s", r.Method)
		}
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("Last-Modified", "Wed, 21 Oct 2015 07:28:00 GMT")
		w.Header().Set("Content-Length", "42")
	}))
	defer srv.Close()

	got := New(time.Second).Probe(context.Background(), srv.URL+"/app.js")
	if got.Kind != Identity {
		t.Fatalf("kind = %v, want Identity (err=%v)", got.Kind, got.Err)
	}
	want := Fingerprint{ETag: "abc123", Length: "42", LastModified: "Wed, 21 Oct 2015 07:28:00 GMT"}
	if diff := cmp.Diff(want, got.Fingerprint); diff != "" {
		t.Fatalf("fingerprint (-want +got):\n%s", diff)
	}
	if got.Fingerprint.Key() != "abc123_42_Wed, 21 Oct 2015 07:28:00 GMT" {
		t.Fatalf("unexpected key %q", got.Fingerprint.Key())
	}
}

func TestProbeUnknownWithoutValidators(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Content-Length solo no es un validador.
		w.Header().Set("Content-Length", "10")
	}))
	defer srv.Close()

	got := New(time.Second).Probe(context.Background(), srv.URL)
	if got.Kind != Unknown {
		t.Fatalf("kind = %v, want Unknown", got.Kind)
	}
	if got.Fingerprint.Usable() {
		t.Fatal("fingerprint without validators must not be usable")
	}
}

func TestProbeUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"x"`)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if got := New(time.Second).Probe(context.Background(), srv.URL); got.Kind != Unreachable {
		t.Fatalf("kind = %v, want Unreachable", got.Kind)
	}

	srv.Close()
	if got := New(time.Second).Probe(context.Background(), srv.URL); got.Kind != Unreachable {
		t.Fatalf("kind after close = %v, want Unreachable", got.Kind)
	}
}

func TestProbeInsecureTLS(t *testing.T) {
	t.Parallel()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"tls-ok"`)
	}))
	defer srv.Close()

	// El certificado del servidor de prueba es autofirmado; el sondeo
	// debe aceptarlo igualmente.
	got := New(time.Second).Probe(context.Background(), srv.URL)
	if got.Kind != Identity {
		t.Fatalf("kind = %v, want Identity (err=%v)", got.Kind, got.Err)
	}
	if got.Fingerprint.ETag != "tls-ok" {
		t.Fatalf("etag = %q", got.Fingerprint.ETag)
	}
}

func TestCollapseHostSameFingerprint(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a.js", "/b.js":
			w.Header().Set("ETag", `"same"`)
			w.Header().Set("Content-Length", "3")
		case "/c.js":
			w.Header().Set("ETag", `"other"`)
			w.Header().Set("Content-Length", "3")
		}
	}))
	defer srv.Close()

	result, err := New(time.Second).CollapseHost(context.Background(),
		records(srv.URL+"/a.js", srv.URL+"/b.js", srv.URL+"/c.js"), 2)
	if err != nil {
		t.Fatalf("CollapseHost: %v", err)
	}

	want := []string{srv.URL + "/a.js", srv.URL + "/c.js"}
	if diff := cmp.Diff(want, urlsOf(result.Kept)); diff != "" {
		t.Fatalf("kept (-want +got):\n%s", diff)
	}
	if result.Collapsed != 1 {
		t.Fatalf("collapsed = %d, want 1", result.Collapsed)
	}
}

func TestCollapseHostKeepsAllUnknown(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Sin validadores: ninguna URL puede colapsarse aunque las
		// longitudes coincidan.
	}))
	defer srv.Close()

	input := records(srv.URL+"/a.js", srv.URL+"/b.js")
	result, err := New(time.Second).CollapseHost(context.Background(), input, 2)
	if err != nil {
		t.Fatalf("CollapseHost: %v", err)
	}
	if diff := cmp.Diff(urlsOf(input), urlsOf(result.Kept)); diff != "" {
		t.Fatalf("kept (-want +got):\n%s", diff)
	}
	if result.Collapsed != 0 {
		t.Fatalf("collapsed = %d, want 0", result.Collapsed)
	}
}

func TestCollapseHostDropsUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/dead.js" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("ETag", `"live"`)
	}))
	defer srv.Close()

	result, err := New(time.Second).CollapseHost(context.Background(),
		records(srv.URL+"/live.js", srv.URL+"/dead.js"), 2)
	if err != nil {
		t.Fatalf("CollapseHost: %v", err)
	}
	if diff := cmp.Diff([]string{srv.URL + "/live.js"}, urlsOf(result.Kept)); diff != "" {
		t.Fatalf("kept (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{srv.URL + "/dead.js"}, urlsOf(result.Unreachable)); diff != "" {
		t.Fatalf("unreachable (-want +got):\n%s", diff)
	}
}

func TestCollapseHostCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	result, err := New(time.Second).CollapseHost(ctx, records(srv.URL+"/a.js"), 1)
	if err == nil && len(result.Kept) != 0 {
		t.Fatalf("cancelled run kept records: %v", urlsOf(result.Kept))
	}
}
