package out

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Writer escribe líneas únicas a un archivo, seguro para uso concurrente.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	seen   map[string]struct{}
	closed bool
}

func New(outdir, name string) (*Writer, error) {
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return nil, err
	}
	p := filepath.Join(outdir, name)
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return &Writer{
		file: f,
		buf:  bufio.NewWriterSize(f, 64*1024),
		seen: make(map[string]struct{}),
	}, nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	var err error
	if w.buf != nil {
		if e := w.buf.Flush(); e != nil && err == nil {
			err = e
		}
	}
	if w.file != nil {
		if e := w.file.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// WriteLine escribe la línea si no se ha visto antes. Hace flush
// inmediato para que los consumidores puedan leer el archivo aunque
// Close no se haya llamado todavía.
func (w *Writer) WriteLine(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return os.ErrClosed
	}
	if _, ok := w.seen[line]; ok {
		return nil
	}
	w.seen[line] = struct{}{}

	if _, err := w.buf.WriteString(line); err != nil {
		return err
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return err
	}
	return w.buf.Flush()
}

// WriteSortedLines persiste el conjunto de líneas ordenado
// lexicográficamente, una por línea. La salida es reproducible para
// una misma entrada.
func WriteSortedLines(outdir, name string, lines []string) error {
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return err
	}

	sorted := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		sorted = append(sorted, line)
	}
	sort.Strings(sorted)

	var builder strings.Builder
	for _, line := range sorted {
		builder.WriteString(line)
		builder.WriteByte('\n')
	}
	return os.WriteFile(filepath.Join(outdir, name), []byte(builder.String()), 0o644)
}
