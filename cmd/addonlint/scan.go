// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/addonlint/services/lint/compat"
	"github.com/AleutianAI/addonlint/services/lint/findings"
	"github.com/AleutianAI/addonlint/services/lint/report"
	"github.com/AleutianAI/addonlint/services/lint/scanner"
)

// bootstrapRDF matches a bootstrapped install manifest.
var bootstrapRDF = regexp.MustCompile(`<em:bootstrap>\s*true\s*</em:bootstrap>|em:bootstrap\s*=\s*"true"`)

type scanOptions struct {
	json           bool
	supported      []string
	bootstrapped   bool
	failOnWarnings bool
	exclude        []string
}

func scanCmd(a *app) *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan <path>...",
		Short: "Scan add-on files or directories",
		Long: `Scan add-on sources. Directories are walked recursively; hidden
directories are skipped. Exits non-zero when the run fails review: on any
error, and on any warning unless --fail-on-warnings=false.`,
		Example: `  addonlint scan ./my-addon
  addonlint scan --json --supported firefox=45.0-53.* ./my-addon
  addonlint scan --exclude "lib/**" bootstrap.js lib`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScan(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.json, "json", false, "Write the report as JSON")
	cmd.Flags().StringArrayVar(&opts.supported, "supported", nil, "Supported application range, app=min-max (repeatable)")
	cmd.Flags().BoolVar(&opts.bootstrapped, "bootstrapped", false, "Treat the package as bootstrapped (detected from install.rdf otherwise)")
	cmd.Flags().BoolVar(&opts.failOnWarnings, "fail-on-warnings", true, "Fail on warnings as well as errors")
	cmd.Flags().StringArrayVar(&opts.exclude, "exclude", nil, "Glob of paths to skip, relative to each root (repeatable)")
	return cmd
}

func (a *app) runScan(cmd *cobra.Command, args []string, opts scanOptions) error {
	ctx := cmd.Context()

	supported, err := compat.ParseSupported(opts.supported)
	if err != nil {
		return err
	}
	for _, p := range opts.exclude {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid --exclude pattern %q", p)
		}
	}

	files, err := collectFiles(args, opts.exclude)
	if err != nil {
		return err
	}

	sc, err := a.newScanner(ctx)
	if err != nil {
		return err
	}

	b := findings.NewBundle()
	if supported != nil {
		b.SetSupportedApps(supported)
	}
	b.SetResource("em:bootstrap", opts.bootstrapped || detectBootstrap(files))

	stats, err := sc.ScanFiles(ctx, files, b)
	if err != nil {
		return err
	}

	result := report.NewResult(uuid.NewString(), stats, b, opts.failOnWarnings)
	out := cmd.OutOrStdout()
	if opts.json {
		err = report.WriteJSON(out, result)
	} else {
		err = report.WriteText(out, result, useColor(out))
	}
	if err != nil {
		return err
	}
	if result.Failed {
		return errScanFailed
	}
	return nil
}

// collectFiles reads every classifiable file under paths.
//
// File names are relative to the root they were found under, slash
// separated. A path naming a file directly keeps its base name.
func collectFiles(paths, exclude []string) ([]scanner.File, error) {
	var files []scanner.File
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			content, err := os.ReadFile(root)
			if err != nil {
				return nil, err
			}
			files = append(files, scanner.File{Name: filepath.Base(root), Content: content})
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if excluded(rel, exclude) {
				return nil
			}
			if _, ok := scanner.ClassifyFile(rel); !ok {
				return nil
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			files = append(files, scanner.File{Name: rel, Content: content})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}
	return files, nil
}

func excluded(rel string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// detectBootstrap reports whether a top-level install.rdf declares a
// bootstrapped package.
func detectBootstrap(files []scanner.File) bool {
	for _, f := range files {
		if strings.EqualFold(f.Name, "install.rdf") && bootstrapRDF.Match(f.Content) {
			return true
		}
	}
	return false
}

func useColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && report.IsTerminal(f)
}
