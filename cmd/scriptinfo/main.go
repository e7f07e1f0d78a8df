// Command scriptinfo loads an existing bootload script, verifies its
// integrity trailer and reports the command count and header fields.
// Adapted from the teacher's device-manager CLI, stripped of the
// device transport it drove and pointed at internal/script instead.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/raffber/mergetool/internal/command"
	"github.com/raffber/mergetool/internal/script"
)

var scriptPath = flag.String("script", "", "Path to the .gctbtl script to inspect")

func main() {
	flag.Parse()
	if *scriptPath == "" {
		log.Fatalf("-script needs to be set")
	}

	raw, err := os.ReadFile(*scriptPath)
	if err != nil {
		log.Fatalf("failed to read script: %v", err)
	}

	s, err := script.Parse(string(raw))
	if err != nil {
		log.Fatalf("failed to parse script: %v", err)
	}

	if err := s.Verify(); err != nil {
		log.Fatalf("script failed verification: %v", err)
	}
	log.Printf("script OK: %d commands", len(s.Commands()))

	for _, cmd := range s.Commands() {
		if cmd.Tag != command.TagHeader {
			continue
		}
		for _, f := range cmd.Header {
			log.Printf("  %s = %s", f.Key, f.Value)
		}
	}
}
