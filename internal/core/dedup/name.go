package dedup

import (
	"js-rec/internal/platform/urlutil"
)

// defaultExt se aplica cuando la URL no trae extensión reconocible.
const defaultExt = ".js"

// ArtifactName derives the deterministic on-disk name for a body
// fetched from rawURL: <sanitized-base>__<digest><ext>. The digest in
// the name makes accidental overwrite of distinct content impossible
// and reruns idempotent.
func ArtifactName(rawURL, digest string) string {
	ext := urlutil.ExtractExtension(rawURL)
	if ext == "" {
		ext = defaultExt
	}
	return urlutil.SanitizeBase(rawURL) + "__" + digest + ext
}
