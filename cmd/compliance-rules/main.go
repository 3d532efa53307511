// Package main provides a CLI tool for validating detection rule and
// playbook YAML files.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yksanjo/ai-compliance-system/internal/automation"
	"github.com/yksanjo/ai-compliance-system/internal/detection"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		runValidateCmd(os.Args[2:])
	case "list":
		runListCmd(os.Args[2:])
	case "-version", "--version", "-v":
		fmt.Printf("compliance-rules %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: compliance-rules <command> [flags] [args]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  validate  Validate rule or playbook YAML files or directories\n")
	fmt.Fprintf(os.Stderr, "  list      List rules and playbooks found in files or directories\n\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	fmt.Fprintf(os.Stderr, "  -version  Show version and exit\n")
}

func runValidateCmd(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	verbose := fs.Bool("verbose", false, "Show detailed rule information")
	playbooks := fs.Bool("playbooks", false, "Treat inputs as playbook files")
	fs.Parse(args)

	paths := fs.Args()
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "Error: at least one path is required\n")
		fmt.Fprintf(os.Stderr, "Usage: compliance-rules validate [--verbose] [--playbooks] <path> [<path>...]\n")
		os.Exit(1)
	}

	os.Exit(runValidate(paths, *verbose, *playbooks))
}

func runListCmd(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	playbooks := fs.Bool("playbooks", false, "Treat inputs as playbook files")
	fs.Parse(args)

	paths := fs.Args()
	if len(paths) == 0 {
		if *playbooks {
			paths = []string{"playbooks"}
		} else {
			paths = []string{"rules"}
		}
	}

	os.Exit(runList(paths, *playbooks))
}

func runValidate(paths []string, verbose, playbooks bool) int {
	var totalFiles, validFiles, invalidFiles int

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", path, err)
			invalidFiles++
			continue
		}

		if info.IsDir() {
			files, err := collectYAMLFiles(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading directory %s: %v\n", path, err)
				invalidFiles++
				continue
			}
			for _, f := range files {
				totalFiles++
				if validateFile(f, verbose, playbooks) {
					validFiles++
				} else {
					invalidFiles++
				}
			}
		} else {
			totalFiles++
			if validateFile(path, verbose, playbooks) {
				validFiles++
			} else {
				invalidFiles++
			}
		}
	}

	fmt.Printf("\nResults: %d files checked, %d valid, %d invalid\n", totalFiles, validFiles, invalidFiles)

	if invalidFiles > 0 {
		return 1
	}
	return 0
}

func validateFile(path string, verbose, playbooks bool) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("  FAIL  %s: %v\n", path, err)
		return false
	}

	if playbooks {
		parsed, err := automation.ParsePlaybooks(data)
		if err != nil {
			fmt.Printf("  FAIL  %s: %v\n", path, err)
			return false
		}
		fmt.Printf("  OK    %s (%d playbook(s))\n", path, len(parsed))
		if verbose {
			for _, p := range parsed {
				fmt.Printf("        - [%s] %s (%d step(s), enabled=%t)\n",
					p.ID, p.Name, len(p.Steps), p.Enabled)
				for _, step := range p.Steps {
					fmt.Printf("          step %s type=%s\n", step.ID, step.Type)
				}
			}
		}
		return true
	}

	rules, err := detection.ParseRules(data)
	if err != nil {
		fmt.Printf("  FAIL  %s: %v\n", path, err)
		return false
	}

	fmt.Printf("  OK    %s (%d rule(s))\n", path, len(rules))

	if verbose {
		for _, rule := range rules {
			fmt.Printf("        - [%s] %s (asset_type=%s, severity=%s)\n",
				rule.ID, rule.Name, rule.AssetType, rule.Severity)
			if rule.Group != "" {
				fmt.Printf("          group: %s\n", rule.Group)
			}
			if rule.Framework != "" {
				fmt.Printf("          framework: %s\n", rule.Framework)
			}
		}
	}

	return true
}

func runList(paths []string, playbooks bool) int {
	for _, path := range paths {
		files, err := collectYAMLFiles(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
			continue
		}

		for _, f := range files {
			data, err := os.ReadFile(f)
			if err != nil {
				continue
			}

			if playbooks {
				parsed, err := automation.ParsePlaybooks(data)
				if err != nil {
					continue
				}
				for _, p := range parsed {
					fmt.Printf("%-40s  steps=%-3d  enabled=%-5t  %s\n",
						p.ID, len(p.Steps), p.Enabled, p.Name)
				}
				continue
			}

			rules, err := detection.ParseRules(data)
			if err != nil {
				continue
			}
			for _, rule := range rules {
				fmt.Printf("%-40s  %-12s  sev=%-8s  %s\n",
					rule.ID, rule.AssetType, rule.Severity, rule.Name)
			}
		}
	}
	return 0
}

func collectYAMLFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
