package main

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/nodeview/pkg/config"
	"github.com/vanderheijden86/nodeview/pkg/debug"
	"github.com/vanderheijden86/nodeview/pkg/node"
	"github.com/vanderheijden86/nodeview/pkg/node/fsnode"
)

func TestPrintTree(t *testing.T) {
	root := node.NewMem("root")
	docs := root.NewChild("docs")
	docs.NewChild("guide.md", node.Leaf())
	deep := docs.NewChild("deep")
	deep.NewChild("hidden.txt", node.Leaf())
	root.NewChild("README", node.Leaf())

	var buf bytes.Buffer
	if err := printTree(&buf, root, 2); err != nil {
		t.Fatalf("printTree: %v", err)
	}
	want := "root\n  docs/\n    guide.md\n    deep/\n  README\n"
	if got := buf.String(); got != want {
		t.Errorf("printTree output:\n%s\nwant:\n%s", got, want)
	}
}

func TestResolveDir(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.SetBookmark("work", dir)

	tests := []struct {
		name string
		arg  string
		want string
	}{
		{"empty", "", "."},
		{"bookmark", "work", dir},
		{"plain path", dir, dir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveDir(cfg, tt.arg); got != tt.want {
				t.Errorf("resolveDir(%q) = %q, want %q", tt.arg, got, tt.want)
			}
		})
	}
}

func TestResolveDirPrefersExistingPath(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	if err := os.Mkdir(filepath.Join(dir, "work"), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.SetBookmark("work", "/elsewhere")
	if got := resolveDir(cfg, "work"); got != "work" {
		t.Errorf("resolveDir = %q, want the local directory", got)
	}
}

func TestWarm_LogsPreloadFailure(t *testing.T) {
	fs, err := fsnode.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer fs.Close()

	var buf bytes.Buffer
	was := debug.Enabled()
	debug.SetEnabled(true)
	debug.SetLogger(log.New(&buf, "", 0))
	t.Cleanup(func() {
		debug.SetEnabled(was)
		debug.SetLogger(nil)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := warm(ctx, fs); !errors.Is(err, context.Canceled) {
		t.Errorf("warm with cancelled context = %v, want context.Canceled", err)
	}
	out := buf.String()
	if !strings.Contains(out, "preload "+fs.Root().Path()) || !strings.Contains(out, "context canceled") {
		t.Errorf("preload failure not logged:\n%s", out)
	}
	if !strings.Contains(out, "preload took") {
		t.Errorf("preload timing not logged:\n%s", out)
	}
}

func TestWarm_Succeeds(t *testing.T) {
	fs, err := fsnode.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer fs.Close()
	if err := warm(context.Background(), fs); err != nil {
		t.Errorf("warm: %v", err)
	}
	if !fs.Root().Loaded() {
		t.Error("root should be read after warm")
	}
}
