package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/vanderheijden86/nodeview/internal/orderstore"
	"github.com/vanderheijden86/nodeview/pkg/config"
	"github.com/vanderheijden86/nodeview/pkg/debug"
	"github.com/vanderheijden86/nodeview/pkg/explorer"
	"github.com/vanderheijden86/nodeview/pkg/metrics"
	"github.com/vanderheijden86/nodeview/pkg/node"
	"github.com/vanderheijden86/nodeview/pkg/node/fsnode"
	"github.com/vanderheijden86/nodeview/pkg/ui"
	"github.com/vanderheijden86/nodeview/pkg/uithread"
	"github.com/vanderheijden86/nodeview/pkg/version"
	"github.com/vanderheijden86/nodeview/pkg/watcher"
)

// plainDepth is how many levels are printed when stdout is not a terminal.
const plainDepth = 2

func main() {
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	configPath := flag.String("config", "", "Read configuration from this file instead of the XDG location")
	modeFlag := flag.String("mode", "", "Selection mode: single, contiguous or discontiguous")
	viewFlag := flag.String("view", "", "Layout: split, tree, list or table")
	noWatch := flag.Bool("no-watch", false, "Do not watch directories for changes")
	flag.Parse()

	if *help {
		fmt.Println("Usage: nv [options] [dir|bookmark]")
		fmt.Println("\nA terminal explorer with synchronized tree, list and table views.")
		flag.PrintDefaults()
		os.Exit(0)
	}
	if *versionFlag {
		fmt.Printf("nv %s\n", version.String())
		os.Exit(0)
	}

	var cfg config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFrom(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
	}
	if *modeFlag != "" {
		cfg.Explorer.SelectionMode = *modeFlag
	}
	if *viewFlag != "" {
		cfg.UI.DefaultView = *viewFlag
	}
	if *noWatch {
		cfg.Watch.Disabled = true
	}

	mode, err := explorer.ParseSelectionMode(cfg.Explorer.SelectionMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	dir := resolveDir(cfg, flag.Arg(0))

	opts := []fsnode.Option{fsnode.WithHidden(cfg.UI.ShowHidden)}
	if path := config.OrderDBPath(); path != "" {
		store, err := orderstore.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: custom order disabled: %v\n", err)
		} else {
			defer store.Close()
			opts = append(opts, fsnode.WithOrderStore(store))
		}
	}
	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	if interactive && !cfg.Watch.Disabled {
		opts = append(opts, fsnode.WithWatch(
			watcher.WithDebounceDuration(cfg.Watch.Debounce),
			watcher.WithPollInterval(cfg.Watch.PollInterval),
			watcher.WithForcePoll(cfg.Watch.ForcePoll),
		))
	}

	fs, err := fsnode.Open(dir, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer fs.Close()

	if !interactive {
		if err := printTree(os.Stdout, fs.Root(), plainDepth); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runExplorer(cfg, mode, fs); err != nil {
		fmt.Printf("Error running nv: %v\n", err)
		os.Exit(1)
	}
}

// resolveDir maps the positional argument to a directory: a bookmark name
// wins over a relative path of the same name.
func resolveDir(cfg config.Config, arg string) string {
	if arg == "" {
		return "."
	}
	if b := cfg.FindBookmark(arg); b != nil {
		if _, err := os.Stat(arg); err != nil {
			return b.ResolvedPath()
		}
	}
	return arg
}

func runExplorer(cfg config.Config, mode explorer.SelectionMode, fs *fsnode.FS) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := uithread.NewSized(cfg.Explorer.QueueSize)
	defer loop.Stop()

	mgr := explorer.NewManager()
	root := fs.Root()
	if err := loop.Post(func(ctx context.Context) {
		if err := mgr.SetRootContext(ctx, root); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}); err != nil {
		return err
	}

	_ = warm(ctx, fs)

	m := ui.NewModel(loop, mgr, ui.Options{
		Context:          ctx,
		Layout:           cfg.UI.DefaultView,
		Mode:             mode,
		EvictionDelay:    cfg.Explorer.EvictionDelay,
		HoverExpandDelay: cfg.Explorer.HoverExpandDelay,
		SplitRatio:       cfg.UI.SplitRatio,
		ShowDescriptions: cfg.UI.ShowDescriptions,
		State:            ui.LoadExpansionState(config.ExpansionStatePath()),
		Refresh: func(n node.Node) error {
			e, ok := n.(*fsnode.Entry)
			if !ok {
				return nil
			}
			return fs.Refresh(e)
		},
	})
	defer m.Shutdown()
	defer logMetrics()

	return runTUIProgram(m)
}

// warm reads the root directory ahead of the first frame. A failure only
// costs the warm start; the entries are read again on demand.
func warm(ctx context.Context, fs *fsnode.FS) error {
	start := time.Now()
	defer func() { debug.LogTiming("preload", time.Since(start)) }()
	err := fs.Preload(ctx, []*fsnode.Entry{fs.Root()}, 4)
	if err != nil {
		debug.Log("preload %s: %v", fs.Root().Path(), err)
	}
	return err
}

// logMetrics writes the session's timing and counter metrics to the debug log.
func logMetrics() {
	if !debug.Enabled() {
		return
	}
	for _, s := range metrics.AllTimingStats() {
		debug.Log("metric %s: count=%d avg=%.3fms max=%.3fms total=%.1fms", s.Name, s.Count, s.AvgMs, s.MaxMs, s.TotalMs)
	}
	for name, v := range metrics.CounterValues() {
		debug.Log("counter %s: %d", name, v)
	}
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set NV_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("NV_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()
				select {
				case <-runDone:
				case <-timer.C:
					p.Quit()
				}
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// printTree writes n's subtree down to depth levels as indented text.
func printTree(w io.Writer, n node.Node, depth int) error {
	if _, err := fmt.Fprintln(w, n.DisplayName()); err != nil {
		return err
	}
	return printChildren(w, n, 1, depth)
}

func printChildren(w io.Writer, n node.Node, level, depth int) error {
	if level > depth || n.IsLeaf() {
		return nil
	}
	for _, c := range n.Children() {
		name := c.DisplayName()
		if !c.IsLeaf() {
			name += "/"
		}
		if _, err := fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", level), name); err != nil {
			return err
		}
		if err := printChildren(w, c, level+1, depth); err != nil {
			return err
		}
	}
	return nil
}
