package dedup

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Status es la decisión terminal del coordinador para un cuerpo.
type Status int

const (
	// Stored: contenido nuevo, materializado en disco.
	Stored Status = iota
	// Duplicate: el identificador ya estaba comprometido en esta
	// ejecución o el artefacto ya existía de una ejecución previa.
	Duplicate
)

// Commit describe el resultado de ofrecer un cuerpo al almacén.
type Commit struct {
	Status   Status
	Digest   string
	Artifact string
}

// Store is the stateful heart of the exact dedup tier. It owns the
// run-scoped set of committed content identifiers; all check-and-insert
// decisions happen under one mutex, and disk I/O happens outside it so
// a slow write never blocks unrelated fetches.
type Store struct {
	dir  string
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewStore creates the artifact directory and an empty dedup set. The
// set is not persisted across runs; rerun idempotence comes from the
// on-disk existence check in Offer.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir, seen: make(map[string]struct{})}, nil
}

func (s *Store) Dir() string { return s.dir }

// Offer hashes body and decides, atomically with respect to all
// concurrent callers, whether this content is new. New content is
// written to a temp file and renamed into place so an interrupt never
// leaves partials under the artifact name.
//
// The digest is inserted before the write. If the write then fails the
// digest stays in the set for the rest of the run ("phantom"): an
// accepted trade-off that keeps the critical section free of I/O.
// Removing it instead would race against a concurrent fetch of the
// same content that already observed it as present.
func (s *Store) Offer(rawURL string, body []byte) (Commit, error) {
	digest := Sum(body)

	s.mu.Lock()
	if _, dup := s.seen[digest]; dup {
		s.mu.Unlock()
		return Commit{Status: Duplicate, Digest: digest}, nil
	}
	s.seen[digest] = struct{}{}
	s.mu.Unlock()

	name := ArtifactName(rawURL, digest)
	path := filepath.Join(s.dir, name)

	if _, err := os.Stat(path); err == nil {
		// Quedó de una ejecución anterior: el nombre ya codifica el
		// digest, el contenido es el mismo.
		return Commit{Status: Duplicate, Digest: digest, Artifact: name}, nil
	}

	tmp, err := os.CreateTemp(s.dir, name+".part*")
	if err != nil {
		return Commit{}, fmt.Errorf("artefacto %s: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return Commit{}, fmt.Errorf("artefacto %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return Commit{}, fmt.Errorf("artefacto %s: %w", name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return Commit{}, fmt.Errorf("artefacto %s: %w", name, err)
	}

	return Commit{Status: Stored, Digest: digest, Artifact: name}, nil
}

// Committed returns the number of distinct identifiers inserted so far.
func (s *Store) Committed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
