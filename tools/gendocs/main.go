// Command gendocs generates man pages and markdown docs from the nohands
// commands.
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra/doc"

	"nohands.dev/go/nohands/internal/cli"
)

func main() {
	header := &doc.GenManHeader{
		Title:   "NOHANDS",
		Section: "1",
		Source:  "nohands",
		Manual:  "nohands manual",
	}

	rootCmd := cli.RootCmd
	rootCmd.DisableAutoGenTag = true

	for dir, gen := range map[string]func(string) error{
		"./man": func(dir string) error { return doc.GenManTree(rootCmd, header, dir) },
		"./docs/cli": func(dir string) error { return doc.GenMarkdownTree(rootCmd, dir) },
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create %s: %v", dir, err)
		}
		if err := gen(dir); err != nil {
			log.Fatalf("Failed to generate docs in %s: %v", dir, err)
		}
		log.Printf("Docs generated in %s", dir)
	}
}
