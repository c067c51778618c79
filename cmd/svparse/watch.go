package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var (
		configPath string
		output     string
		jobs       int
		debounce   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Re-dump the model whenever SystemVerilog sources change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "."
			if len(args) == 1 {
				target = args[0]
			}

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			opts, err := parseOptions(cfg, nil, nil)
			if err != nil {
				return err
			}

			redump := func() {
				files, err := cfg.ResolveFiles(target)
				if err != nil || len(files) == 0 {
					fmt.Fprintln(os.Stderr, "watch: no files to parse")
					return
				}
				res, err := parseAll(files, opts, effectiveJobs(jobs, cfg))
				if err != nil {
					fmt.Fprintln(os.Stderr, "watch:", err)
					return
				}
				if err := writeResult(res, output); err != nil {
					fmt.Fprintln(os.Stderr, "watch:", err)
					return
				}
				fmt.Fprintf(os.Stderr, "parsed: files=%d modules=%d packages=%d diagnostics=%d\n",
					len(files), len(res.Modules), len(res.Packages), len(res.Diagnostics))
			}

			redump()
			return watchDir(target, debounce, redump)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "explicit config file (default: search svparse.json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write JSON to file on every change (default: stdout)")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "max files parsed in parallel (0 = auto)")
	cmd.Flags().DurationVar(&debounce, "debounce", 250*time.Millisecond, "quiet period before reparsing")
	return cmd
}

// watchDir watches target recursively and calls onChange once per burst of
// events touching .sv/.svh files, after the debounce interval has passed
// without further events.
func watchDir(target string, debounce time.Duration, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addWatchRecursive(watcher, target); err != nil {
		return err
	}

	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	pending := false

	resetDebounce := func() {
		if pending {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
		timer.Reset(debounce)
		pending = true
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			eventPath := filepath.Clean(event.Name)
			if event.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(eventPath); statErr == nil && info.IsDir() {
					_ = addWatchRecursive(watcher, eventPath)
					continue
				}
			}
			if !isSourcePath(eventPath) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			resetDebounce()
		case <-timer.C:
			if pending {
				pending = false
				onChange()
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return watchErr
		}
	}
}

func addWatchRecursive(watcher *fsnotify.Watcher, root string) error {
	root = filepath.Clean(root)
	return filepath.WalkDir(root, func(path string, entry os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !entry.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(entry.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func isSourcePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sv", ".svh":
		return true
	}
	return false
}
