package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JBRUL254/apexnurse/models"
)

type replaceCall struct {
	paper, series, qtype string
	raws                 []models.RawQuestion
}

type fakeBankWriter struct {
	calls []replaceCall
}

func (f *fakeBankWriter) ReplaceSeries(_ context.Context, paper, series, qtype string, raws []models.RawQuestion) error {
	f.calls = append(f.calls, replaceCall{paper, series, qtype, raws})
	return nil
}

const sampleBank = `paper: paper1
series:
  - name: Series_1
    questions:
      - id: q1
        question: "What is shock?"
        option_a: first
        option_b: second
        correct_answer: A
      - id: q2
        question_text: "Legacy field names"
        opt1: first
        opt2: second
        answer: B
  - name: Quicktest_1
    qtype: quicktest
    questions:
      - id: q3
        question: "Short drill"
        option_a: only
        correct_answer: A
`

func writeBank(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSeedFile_LoadsSeriesBlocks(t *testing.T) {
	path := writeBank(t, t.TempDir(), "bank.yaml", sampleBank)
	w := &fakeBankWriter{}

	require.NoError(t, SeedFile(context.Background(), w, path))
	require.Len(t, w.calls, 2)

	assert.Equal(t, "paper1", w.calls[0].paper)
	assert.Equal(t, "Series_1", w.calls[0].series)
	assert.Equal(t, "series", w.calls[0].qtype, "qtype defaults to series")
	require.Len(t, w.calls[0].raws, 2)
	// Legacy field names pass through untouched for the normalizer.
	assert.Equal(t, "B", w.calls[0].raws[1]["answer"])

	assert.Equal(t, "Quicktest_1", w.calls[1].series)
	assert.Equal(t, "quicktest", w.calls[1].qtype)
}

func TestSeedFile_RejectsMissingPaper(t *testing.T) {
	path := writeBank(t, t.TempDir(), "bank.yaml", "series:\n  - name: S1\n")
	err := SeedFile(context.Background(), &fakeBankWriter{}, path)
	assert.ErrorContains(t, err, "no paper name")
}

func TestSeedFile_RejectsInvalidQType(t *testing.T) {
	path := writeBank(t, t.TempDir(), "bank.yaml",
		"paper: paper1\nseries:\n  - name: S1\n    qtype: exam\n")
	err := SeedFile(context.Background(), &fakeBankWriter{}, path)
	assert.ErrorContains(t, err, "invalid qtype")
}

func TestSeedFromDir_SkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	writeBank(t, dir, "good.yaml", sampleBank)
	writeBank(t, dir, "broken.yaml", "paper: [unclosed")
	writeBank(t, dir, "notes.txt", "not a bank file")
	w := &fakeBankWriter{}

	require.NoError(t, SeedFromDir(context.Background(), w, dir))
	assert.Len(t, w.calls, 2, "only the good file is loaded")
}

func TestSeedFromDir_MissingDirectory(t *testing.T) {
	err := SeedFromDir(context.Background(), &fakeBankWriter{}, filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
