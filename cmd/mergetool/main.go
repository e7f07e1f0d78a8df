// Command mergetool loads a run configuration, drives the load/merge
// pipeline and writes the merged images, bootload script and
// manifest. Adapted from the teacher's flag-driven firmware-pack
// utility into a thin front end over internal/pipeline.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/raffber/mergetool/internal/config"
	"github.com/raffber/mergetool/internal/gitdesc"
	"github.com/raffber/mergetool/internal/pipeline"
	"github.com/raffber/mergetool/internal/script"
)

var (
	configPath = flag.String("config", "", "Path to the YAML run configuration")
	outputDir  = flag.String("out", "", "Directory to write merged images, script and manifest into")
	repoPath   = flag.String("repo", "", "Path to the git repository used for version pre-release marking (optional)")
)

func main() {
	flag.Parse()
	if *configPath == "" {
		log.Fatalln("-config needs to be set")
	}
	if *outputDir == "" {
		log.Fatalln("-out needs to be set")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	if *repoPath != "" {
		desc, err := gitdesc.Describe(*repoPath)
		if err != nil {
			log.Printf("git description unavailable: %v", err)
		} else {
			log.Printf("building at %s (on_tag=%v, parent_tag=%s)", desc.SHA, desc.OnTag, desc.ParentTagName)
			if err := resolveImageVersions(cfg, desc); err != nil {
				log.Fatal(err)
			}
		}
	}

	buildTimestamp := uint64(time.Now().Unix())
	res, err := pipeline.Run(cfg, buildTimestamp, script.DefaultTimeModel(), pipeline.Options{Log: log.Writer()})
	if err != nil {
		log.Fatal(err)
	}

	manifest, err := pipeline.WriteOutputs(cfg, res, *outputDir)
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("wrote %d image(s) and script %s to %s", len(manifest.Images), manifest.ScriptFile, manifest.OutputDir)
}

// resolveImageVersions replaces each image's configured version with
// its git-description-resolved form (marking pre-release builds) so
// the resolved version is what header reconciliation, the script
// header line and the validation payload all end up using. Images
// with no configured version are left for the pipeline's own
// changelog/header fallback.
func resolveImageVersions(cfg *config.Config, desc gitdesc.Description) error {
	for i := range cfg.Images {
		base, err := cfg.Images[i].SemVer()
		if err != nil {
			return err
		}
		if base == nil {
			continue
		}
		resolved, err := config.ResolveVersion(base, desc)
		if err != nil {
			return err
		}
		v := resolved.String()
		cfg.Images[i].Version = &v
	}
	return nil
}
