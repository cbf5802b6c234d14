package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"scrape-gate/pkg/config"
	"scrape-gate/pkg/export"
	"scrape-gate/pkg/pipeline"
)

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	schemaFile := fs.String("schema", "", "Also check that this JSON Schema file compiles")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: scrape-gate validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	ok, code := parseFlags(fs, args)
	if !ok {
		os.Exit(code)
	}
	os.Exit(doValidate(*configFile, *schemaFile, os.Stdout, os.Stderr))
}

// doValidate checks the config and everything it references without
// contacting the backend.
func doValidate(configPath, schemaPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath, false)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "OK: backend %s (%s)\n", appCfg.Provider, appCfg.Model)

	hasError := false
	if _, err := pipeline.LoadPrompts(appCfg.Prompts); err != nil {
		fmt.Fprintf(stderr, "ERROR: [prompts] %v\n", err)
		hasError = true
	} else {
		fmt.Fprintln(stdout, "OK: [prompts]")
	}

	if _, err := export.NewTokenCounter(appCfg.TokenizerEncoding); err != nil {
		fmt.Fprintf(stderr, "ERROR: [tokenizer] %v\n", err)
		hasError = true
	} else {
		fmt.Fprintf(stdout, "OK: [tokenizer] %s\n", appCfg.TokenizerEncoding)
	}

	if schemaPath != "" {
		if _, err := loadSchema(schemaPath); err != nil {
			fmt.Fprintf(stderr, "ERROR: [schema] %v\n", err)
			hasError = true
		} else {
			fmt.Fprintln(stdout, "OK: [schema]")
		}
	}

	if _, err := config.ResolveAPIKey(*appCfg, ""); err != nil {
		fmt.Fprintf(stdout, "WARN: %v\n", err)
	}

	if hasError {
		return 1
	}
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}
