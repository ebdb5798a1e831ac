package discovery

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create test file %s: %v", path, err)
	}
	f.Close()
}

func writeZip(t *testing.T, path string, names ...string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for _, n := range names {
		if _, err := zw.Create(n); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestCollectDirectory(t *testing.T) {
	tempDir := t.TempDir()
	for _, name := range []string{"img10.png", "img2.jpg", "Img3.WEBP", "document.txt", ".hidden.png", "backup.bak"} {
		touch(t, filepath.Join(tempDir, name))
	}
	touch(t, filepath.Join(tempDir, "sub", "b.gif"))
	touch(t, filepath.Join(tempDir, "sub", "a.bmp"))
	touch(t, filepath.Join(tempDir, ".git", "x.png"))
	writeZip(t, filepath.Join(tempDir, "img5.zip"), "p10.png", "p9.png", "readme.txt", "._p1.png")

	c := NewCollector(SortNatural, zerolog.Nop())
	got, err := c.Collect([]string{tempDir})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	archive := filepath.Join(tempDir, "img5.zip")
	want := []string{
		filepath.Join(tempDir, "img2.jpg"),
		filepath.Join(tempDir, "Img3.WEBP"),
		archive + ":p9.png",
		archive + ":p10.png",
		filepath.Join(tempDir, "img10.png"),
		filepath.Join(tempDir, "sub", "a.bmp"),
		filepath.Join(tempDir, "sub", "b.gif"),
	}
	if !reflect.DeepEqual(got.Paths, want) {
		t.Errorf("Paths =\n%v\nwant\n%v", got.Paths, want)
	}
	if got.Selected != "" {
		t.Errorf("Selected = %q, want empty", got.Selected)
	}
}

func TestCollectSingleFile(t *testing.T) {
	tempDir := t.TempDir()
	for _, name := range []string{"c.png", "a.png", "b.jpeg", "notes.txt", "set.zip"} {
		touch(t, filepath.Join(tempDir, name))
	}
	touch(t, filepath.Join(tempDir, "sub", "d.png"))

	c := NewCollector(SortNatural, zerolog.Nop())
	selected := filepath.Join(tempDir, "b.jpeg")
	got, err := c.Collect([]string{selected})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(tempDir, "a.png"),
		filepath.Join(tempDir, "b.jpeg"),
		filepath.Join(tempDir, "c.png"),
	}
	if !reflect.DeepEqual(got.Paths, want) {
		t.Errorf("Paths = %v, want %v", got.Paths, want)
	}
	if got.Selected != selected {
		t.Errorf("Selected = %q, want %q", got.Selected, selected)
	}
}

func TestCollectMultipleArgs(t *testing.T) {
	tempDir := t.TempDir()
	first := filepath.Join(tempDir, "z.png")
	touch(t, first)
	touch(t, filepath.Join(tempDir, "dir", "b.png"))
	touch(t, filepath.Join(tempDir, "dir", "a.png"))

	c := NewCollector(SortSimple, zerolog.Nop())
	got, err := c.Collect([]string{first, filepath.Join(tempDir, "dir")})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{first, filepath.Join(tempDir, "dir", "a.png"), filepath.Join(tempDir, "dir", "b.png")}
	if !reflect.DeepEqual(got.Paths, want) {
		t.Errorf("Paths = %v, want %v", got.Paths, want)
	}
}

func TestCollectErrors(t *testing.T) {
	tempDir := t.TempDir()
	touch(t, filepath.Join(tempDir, "notes.txt"))
	touch(t, filepath.Join(tempDir, "broken.zip"))

	c := NewCollector(SortNatural, zerolog.Nop())
	if _, err := c.Collect([]string{tempDir}); !errors.Is(err, ErrNoImages) {
		t.Errorf("Collect(no images) = %v, want ErrNoImages", err)
	}
	if _, err := c.Collect([]string{filepath.Join(tempDir, "missing")}); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Collect(missing) = %v, want not-exist", err)
	}
	if _, err := c.Collect(nil); !errors.Is(err, ErrNoImages) {
		t.Errorf("Collect(nil) = %v, want ErrNoImages", err)
	}
}
