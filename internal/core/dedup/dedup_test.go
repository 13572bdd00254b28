package dedup

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestSumDistinguishesContent(t *testing.T) {
	t.Parallel()

	a := Sum([]byte("x"))
	b := Sum([]byte("x"))
	c := Sum([]byte("y"))

	if a != b {
		t.Fatalf("same body, different digests: %s vs %s", a, b)
	}
	if a == c {
		t.Fatal("distinct bodies produced the same digest")
	}
	if len(a) != 64 {
		t.Fatalf("digest length %d, want 64 hex chars", len(a))
	}
	if a != strings.ToLower(a) {
		t.Fatal("digest must be lowercase hex")
	}
}

func TestArtifactName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		url    string
		digest string
		want   string
	}{
		{"https://cdn.example.com/static/app.js", "abc", "cdn.example.com_static_app__abc.js"},
		{"https://example.com/bundle.min.js?v=2", "d1", "example.com_bundle.min__d1.js"},
		{"https://example.com/api/script", "e2", "example.com_api_script__e2.js"},
		{"https://example.com/mod.mjs", "f3", "example.com_mod__f3.mjs"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.url, func(t *testing.T) {
			t.Parallel()
			if got := ArtifactName(tc.url, tc.digest); got != tc.want {
				t.Fatalf("ArtifactName(%q) = %q, want %q", tc.url, got, tc.want)
			}
		})
	}
}

func TestOfferStoresOncePerContent(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	// Muchas URLs distintas, mismo contenido, concurrencia real.
	const goroutines = 16
	var wg sync.WaitGroup
	stored := make([]int, goroutines)
	for i := 0; i < goroutines; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			url := "https://host" + string(rune('a'+i)) + ".example.com/app.js"
			commit, err := store.Offer(url, []byte("identical body"))
			if err != nil {
				t.Errorf("Offer: %v", err)
				return
			}
			if commit.Status == Stored {
				stored[i] = 1
			}
		}()
	}
	wg.Wait()

	total := 0
	for _, n := range stored {
		total += n
	}
	if total != 1 {
		t.Fatalf("%d goroutines reported Stored, want exactly 1", total)
	}

	entries, err := os.ReadDir(store.Dir())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("artifact dir holds %d files, want 1", len(entries))
	}
	if store.Committed() != 1 {
		t.Fatalf("Committed() = %d, want 1", store.Committed())
	}
}

func TestOfferDistinctContent(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	first, err := store.Offer("https://a.example.com/app.js", []byte("x"))
	if err != nil {
		t.Fatalf("Offer: %v", err)
	}
	second, err := store.Offer("https://b.example.com/app.js", []byte("y"))
	if err != nil {
		t.Fatalf("Offer: %v", err)
	}

	if first.Status != Stored || second.Status != Stored {
		t.Fatalf("distinct bodies must both store: %v / %v", first.Status, second.Status)
	}
	if first.Digest == second.Digest {
		t.Fatal("distinct bodies share a digest")
	}

	entries, err := os.ReadDir(store.Dir())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("artifact dir holds %d files, want 2", len(entries))
	}
}

func TestOfferIdempotentAcrossRuns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	body := []byte("persistent")
	url := "https://cdn.example.com/app.js"

	run1, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	commit, err := run1.Offer(url, body)
	if err != nil {
		t.Fatalf("Offer run 1: %v", err)
	}
	if commit.Status != Stored {
		t.Fatalf("run 1 status = %v, want Stored", commit.Status)
	}

	// Nueva ejecución: set vacío, artefacto ya en disco.
	run2, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	commit, err = run2.Offer(url, body)
	if err != nil {
		t.Fatalf("Offer run 2: %v", err)
	}
	if commit.Status != Duplicate {
		t.Fatalf("run 2 status = %v, want Duplicate", commit.Status)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("rerun created new artifacts: %d files", len(entries))
	}
}

func TestOfferArtifactContents(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	body := []byte("function f() { return 7; }")
	commit, err := store.Offer("https://example.com/f.js", body)
	if err != nil {
		t.Fatalf("Offer: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(store.Dir(), commit.Artifact))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != string(body) {
		t.Fatalf("artifact content mismatch: %q", data)
	}
	if !strings.Contains(commit.Artifact, commit.Digest) {
		t.Fatalf("artifact name %q does not embed digest", commit.Artifact)
	}

	// Sin restos temporales.
	entries, _ := os.ReadDir(store.Dir())
	for _, e := range entries {
		if strings.Contains(e.Name(), ".part") {
			t.Fatalf("leftover temp file %q", e.Name())
		}
	}
}
