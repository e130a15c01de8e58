package main

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runTool(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	if err := run(args, &out); err != nil {
		t.Fatalf("maptool %s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func TestCreateInfoAndUID(t *testing.T) {
	t.Setenv("TILEMAP_GRID", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "hills")

	created := runTool(t, "create", "-out", path, "-width", "20", "-height", "18", "-title", "Hills")
	uid, _, _ := strings.Cut(strings.TrimSpace(created), " ")
	if len(uid) != 40 {
		t.Fatalf("create printed %q", created)
	}

	info := runTool(t, "info", path)
	for _, want := range []string{"Title:      Hills", "Size:       20x18", "Bounds:     1,1 18x16", "UID:        " + uid} {
		if !strings.Contains(info, want) {
			t.Errorf("info missing %q:\n%s", want, info)
		}
	}

	if got := strings.TrimSpace(runTool(t, "uid", path)); got != uid {
		t.Errorf("uid = %s, want %s", got, uid)
	}

	runTool(t, "resize", path, "30", "24")
	if info := runTool(t, "info", path); !strings.Contains(info, "Size:       30x24") {
		t.Errorf("info after resize:\n%s", info)
	}
}

func TestConvertAndPreview(t *testing.T) {
	t.Setenv("TILEMAP_GRID", "")
	dir := t.TempDir()
	src := filepath.Join(dir, "gen")
	runTool(t, "generate", "-out", src, "-width", "16", "-seed", "7")

	dst := filepath.Join(dir, "gen.oramap")
	runTool(t, "convert", src, dst)
	if info := runTool(t, "info", dst); !strings.Contains(info, "Size:       16x16") {
		t.Errorf("converted info:\n%s", info)
	}

	out := filepath.Join(dir, "preview.png")
	runTool(t, "preview", dst, out)
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open preview: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if w := img.Bounds().Dx(); w != 2*14-1 {
		t.Errorf("isometric preview width = %d, want %d", w, 2*14-1)
	}
}

func TestProjectionCommands(t *testing.T) {
	t.Setenv("TILEMAP_GRID", "")
	path := filepath.Join(t.TempDir(), "flat")
	runTool(t, "-grid", "rectangular", "create", "-out", path, "-width", "8", "-height", "8")

	got := runTool(t, "-grid", "rectangular", "project", path, "3,4")
	if !strings.Contains(got, "cell 3,4 map 3,4 contains true") || !strings.Contains(got, "projected 3,4 height 0") {
		t.Errorf("project:\n%s", got)
	}
	got = runTool(t, "-grid", "rectangular", "unproject", path, "3,4")
	if !strings.Contains(got, "map 3,4 cell 3,4") {
		t.Errorf("unproject:\n%s", got)
	}
}

func TestErrors(t *testing.T) {
	t.Setenv("TILEMAP_GRID", "")
	var out bytes.Buffer
	if err := run(nil, &out); err == nil {
		t.Error("no command accepted")
	}
	if err := run([]string{"explode"}, &out); err == nil {
		t.Error("unknown command accepted")
	}
	if err := run([]string{"info", filepath.Join(t.TempDir(), "missing")}, &out); err == nil {
		t.Error("missing map accepted")
	}
	if err := run([]string{"create"}, &out); err == nil {
		t.Error("create without -out accepted")
	}
	if err := run([]string{"-grid", "hexagonal", "tilesets"}, &out); err == nil {
		t.Error("unknown grid accepted")
	}

	if got := runTool(t, "tilesets"); !strings.Contains(got, "TEMPERAT") {
		t.Errorf("tilesets = %q", got)
	}
}
