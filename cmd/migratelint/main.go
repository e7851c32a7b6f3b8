package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/nestplan/nestplan-backend/internal/migratelint"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML rule config")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: migratelint [-config file] <file|dir> [...]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	rules := migratelint.DefaultRules()
	if *configPath != "" {
		cfg, err := migratelint.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migratelint: %v\n", err)
			os.Exit(2)
		}
		rules, err = cfg.Apply(rules)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migratelint: %v\n", err)
			os.Exit(2)
		}
	}

	findings, err := migratelint.New(rules).LintPaths(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "migratelint: %v\n", err)
		os.Exit(2)
	}

	for _, f := range findings {
		fmt.Println(f.String())
	}

	if migratelint.HasBlockers(findings) {
		fmt.Fprintf(os.Stderr, "migratelint: blocking findings present\n")
		os.Exit(1)
	}
}
