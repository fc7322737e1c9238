package webroot

import (
	"os"
	"path/filepath"
)

// entryPages are the files the bridge serves as a session UI, in order of
// preference (noVNC layouts vary between distributions).
var entryPages = []string{"vnc.html", "vnc_lite.html", "index.html"}

// Check reports whether path exists and is a directory. A missing web root
// is never fatal: the bridge still forwards the protocol, it just cannot
// serve UI assets.
func Check(path string) bool {
	if path == "" {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// EntryPage returns the first known UI entry page under path, or "" when
// none is present.
func EntryPage(path string) string {
	if !Check(path) {
		return ""
	}
	for _, name := range entryPages {
		p := filepath.Join(path, name)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	return ""
}
