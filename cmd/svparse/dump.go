package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/hdlkit/svparse"
	"github.com/hdlkit/svparse/internal/config"
	"github.com/hdlkit/svparse/internal/validator"
	"github.com/hdlkit/svparse/sv"
)

func newDumpCmd() *cobra.Command {
	var (
		configPath  string
		output      string
		jobs        int
		includeDirs []string
		defines     []string
	)

	cmd := &cobra.Command{
		Use:   "dump [files...]",
		Short: "Parse files and write the structural model as JSON",
		Long: "dump parses the given SystemVerilog files (or the files selected by the\n" +
			"project configuration when none are given) and writes one merged,\n" +
			"schema-validated JSON result.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			files := args
			if len(files) == 0 {
				files, err = cfg.ResolveFiles(".")
				if err != nil {
					return fmt.Errorf("resolving configured files: %w", err)
				}
			}
			if len(files) == 0 {
				return fmt.Errorf("no input files (pass paths or configure file globs)")
			}

			opts, err := parseOptions(cfg, includeDirs, defines)
			if err != nil {
				return err
			}

			res, err := parseAll(files, opts, effectiveJobs(jobs, cfg))
			if err != nil {
				return err
			}

			v, err := validator.New()
			if err != nil {
				return fmt.Errorf("initializing schema validator: %w", err)
			}
			if err := v.Validate(res); err != nil {
				return fmt.Errorf("result violates the output contract: %w", err)
			}

			for _, d := range res.Diagnostics {
				fmt.Fprintln(os.Stderr, d.String())
			}

			return writeResult(res, output)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "explicit config file (default: search svparse.json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write JSON to file (default: stdout)")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "max files parsed in parallel (0 = auto)")
	cmd.Flags().StringArrayVarP(&includeDirs, "include", "I", nil, "extra `include search directory (repeatable)")
	cmd.Flags().StringArrayVarP(&defines, "define", "D", nil, "predefine a macro, NAME or NAME=VALUE (repeatable)")
	return cmd
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.Load(".")
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// parseOptions merges the config's preprocessor settings with the
// command-line overrides. Flags win over the config file.
func parseOptions(cfg *config.Config, includeDirs, defines []string) (svparse.Options, error) {
	opts := svparse.Options{
		IncludeDirs: append(append([]string{}, cfg.IncludeDirs...), includeDirs...),
		Defines:     map[string]string{},
	}
	for name, value := range cfg.Defines {
		opts.Defines[name] = value
	}
	for _, def := range defines {
		name, value, _ := strings.Cut(def, "=")
		if name == "" {
			return svparse.Options{}, fmt.Errorf("malformed define %q", def)
		}
		opts.Defines[name] = value
	}
	return opts, nil
}

func effectiveJobs(jobs int, cfg *config.Config) int {
	if jobs <= 0 {
		jobs = cfg.MaxParallelFiles
	}
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	return jobs
}

func writeResult(res *sv.ParseResult, output string) error {
	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// parseAll parses every file concurrently, bounded by jobs, and merges the
// per-file results in input order so the output is deterministic.
func parseAll(files []string, opts svparse.Options, jobs int) (*sv.ParseResult, error) {
	results := make([]*sv.ParseResult, len(files))
	errs := make([]error, len(files))

	var wg sync.WaitGroup
	sem := make(chan struct{}, jobs)
	for i, file := range files {
		wg.Add(1)
		go func(i int, file string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i], errs[i] = svparse.ReadSVFileOpts(file, opts)
		}(i, file)
	}
	wg.Wait()

	merged := &sv.ParseResult{
		Modules:     []sv.SvModule{},
		Packages:    []sv.SvPackage{},
		Diagnostics: []sv.Diagnostic{},
	}
	for i := range files {
		if errs[i] != nil {
			return nil, errs[i]
		}
		merged.Modules = append(merged.Modules, results[i].Modules...)
		merged.Packages = append(merged.Packages, results[i].Packages...)
		merged.Diagnostics = append(merged.Diagnostics, results[i].Diagnostics...)
	}
	return merged, nil
}
