package source

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildLineIndex(t *testing.T) {
	got := buildLineIndex([]byte("ab\n\nxyz"))
	if diff := cmp.Diff([]uint32{2, 3}, got); diff != "" {
		t.Fatalf("line index (-want +got):\n%s", diff)
	}
	if got := buildLineIndex(nil); len(got) != 0 {
		t.Fatalf("empty content: %v", got)
	}
}

func TestLatestByCleanPath(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("./ui//lint/../lint/unused.rs", []byte("fn main() {}\n"))

	if got := fs.Get(id).Path; got != "ui/lint/unused.rs" {
		t.Fatalf("path = %q", got)
	}
	if latest, ok := fs.GetLatest("ui/lint/unused.rs"); !ok || latest != id {
		t.Fatalf("GetLatest = %d,%v; want %d,true", latest, ok, id)
	}
}
