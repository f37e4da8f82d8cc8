// --- apexnurse/ingestion/ingestion.go ---
package ingestion

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JBRUL254/apexnurse/models"
	"github.com/JBRUL254/apexnurse/store"
)

// bankFile is one YAML question-bank upload: a paper with its series. The
// question entries are kept as loose maps on purpose — bank files of every
// vintage are accepted as-is, and the normalizer resolves the field aliases
// at session start, not at load time.
type bankFile struct {
	Paper  string        `yaml:"paper"`
	Series []seriesBlock `yaml:"series"`
}

type seriesBlock struct {
	Name      string                   `yaml:"name"`
	QType     string                   `yaml:"qtype"`
	Questions []map[string]interface{} `yaml:"questions"`
}

// SeedFromDir loads every .yaml/.yml bank file under dir into the store,
// replacing each (paper, series) wholesale. Files that fail to parse are
// logged and skipped so one bad upload does not block the rest.
func SeedFromDir(ctx context.Context, w store.BankWriter, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read seed directory %s: %w", dir, err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := SeedFile(ctx, w, path); err != nil {
			log.Printf("Error seeding bank file %s: %v", path, err)
			continue
		}
		loaded++
	}
	log.Printf("Seeded %d question bank file(s) from %s", loaded, dir)
	return nil
}

// SeedFile loads a single bank file.
func SeedFile(ctx context.Context, w store.BankWriter, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read bank file: %w", err)
	}

	var bank bankFile
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return fmt.Errorf("failed to parse bank file: %w", err)
	}
	if bank.Paper == "" {
		return fmt.Errorf("bank file %s has no paper name", path)
	}

	for _, block := range bank.Series {
		if block.Name == "" {
			log.Printf("Skipping unnamed series in %s", path)
			continue
		}
		qtype := block.QType
		if qtype == "" {
			qtype = "series"
		}
		if qtype != "series" && qtype != "quicktest" {
			return fmt.Errorf("series %s has invalid qtype %q", block.Name, qtype)
		}

		raws := make([]models.RawQuestion, 0, len(block.Questions))
		for _, q := range block.Questions {
			raws = append(raws, models.RawQuestion(q))
		}
		if err := w.ReplaceSeries(ctx, bank.Paper, block.Name, qtype, raws); err != nil {
			return fmt.Errorf("failed to load series %s/%s: %w", bank.Paper, block.Name, err)
		}
		log.Printf("Loaded %d question(s) into %s/%s (%s)", len(raws), bank.Paper, block.Name, qtype)
	}
	return nil
}
