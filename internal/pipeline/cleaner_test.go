package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jurisprudence-archiver/internal/archive"
	"github.com/JakeFAU/jurisprudence-archiver/internal/storage/memory"
	"github.com/JakeFAU/jurisprudence-archiver/internal/title"
)

func writeRaw(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestCleanerRun(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeRaw(t, root, "1990/Jan/1.pdf", "Source: Supreme Court E-Library 322 Phil. 122")
	writeRaw(t, root, "1990/Jan/2.pdf", "no reporter citation here")
	writeRaw(t, root, "1991/Feb/3.pdf", "pursuant to Act No. 4103")
	writeRaw(t, root, "1991/Feb/4.pdf", "corrupt bytes")
	writeRaw(t, root, "stray.pdf", "123 SCRA 456")
	writeRaw(t, root, "1991/Feb/readme.txt", "ignored")

	store := memory.NewBlobStore()
	pub := &recordingPublisher{}
	c := NewCleaner(fakeProcessor{}, title.NewDeriver(&title.Sequencer{}), store, pub, CleanerConfig{
		Workers: 3,
		Phrases: []string{"Source: Supreme Court E-Library"},
		Topic:   "cleaned",
		RunID:   "run-1",
	}, nil)

	report, err := c.Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Saved)
	assert.Equal(t, 2, report.Failed)

	assert.Equal(t, []string{
		"1990/Jan/322_Phil_122.pdf",
		"1990/Jan/Untitled_1.pdf",
		"1991/Feb/Act_No._4103.pdf",
		archive.UntitledLogName,
	}, store.Keys())

	cleaned, _, _ := store.Get("1990/Jan/322_Phil_122.pdf")
	assert.Equal(t, "cleaned: 322 Phil. 122", string(cleaned))

	log, contentType, ok := store.Get(archive.UntitledLogName)
	require.True(t, ok)
	assert.Equal(t, archive.ContentTypeText, contentType)
	assert.Equal(t, "Untitled_1 -> 2.pdf (1990/Jan)", string(log))

	msgs := pub.Messages()
	require.Len(t, msgs, 3)
	strategies := map[string]string{}
	for _, m := range msgs {
		assert.Equal(t, "cleaned", m.Topic)
		ev, ok := m.Payload.(CleanedEvent)
		require.True(t, ok)
		assert.Equal(t, "run-1", ev.RunID)
		assert.Len(t, ev.SHA256, 64)
		strategies[ev.Title] = ev.TitleStrategy
	}
	assert.Equal(t, map[string]string{
		"322_Phil_122": "citation",
		"Untitled_1":   "untitled",
		"Act_No._4103": "statute",
	}, strategies)
}

func TestCleanerWithoutUntitledWritesNoLog(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeRaw(t, root, "2000/Dec/9.pdf", "5 SCAD 77")
	store := memory.NewBlobStore()
	c := NewCleaner(fakeProcessor{}, nil, store, nil, CleanerConfig{Workers: 1}, nil)

	report, err := c.Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Saved)
	assert.Equal(t, []string{"2000/Dec/5_SCAD_77.pdf"}, store.Keys())
}

func TestCleanerUntitledNamesAreUnique(t *testing.T) {
	t.Parallel()

	const docs = 40
	root := t.TempDir()
	for i := 0; i < docs; i++ {
		writeRaw(t, root, fmt.Sprintf("1999/Jul/%d.pdf", i), "nothing to see")
	}
	store := memory.NewBlobStore()
	c := NewCleaner(fakeProcessor{}, title.NewDeriver(&title.Sequencer{}), store, nil, CleanerConfig{Workers: 8}, nil)

	report, err := c.Run(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, docs, report.Saved)

	var names []string
	for _, k := range store.Keys() {
		if strings.HasPrefix(k, "1999/Jul/Untitled_") {
			names = append(names, k)
		}
	}
	assert.Len(t, names, docs)

	log, _, ok := store.Get(archive.UntitledLogName)
	require.True(t, ok)
	lines := strings.Split(string(log), "\n")
	require.Len(t, lines, docs)
	sort.Strings(lines)
	seen := map[string]bool{}
	for _, l := range lines {
		name := strings.SplitN(l, " -> ", 2)[0]
		assert.False(t, seen[name], "duplicate %s", name)
		seen[name] = true
	}
	assert.True(t, seen["Untitled_1"])
	assert.True(t, seen[fmt.Sprintf("Untitled_%d", docs)])
}

func TestCleanerSurvivesProcessorPanic(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeRaw(t, root, "1990/Jan/1.pdf", "322 Phil. 122")
	writeRaw(t, root, "1990/Jan/2.pdf", "panic on truncated xref")
	writeRaw(t, root, "1990/Jan/3.pdf", "5 SCRA 9")
	store := memory.NewBlobStore()
	c := NewCleaner(fakeProcessor{}, nil, store, nil, CleanerConfig{Workers: 2}, nil)

	report, err := c.Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Saved)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"1990/Jan/322_Phil_122.pdf", "1990/Jan/5_SCRA_9.pdf"}, store.Keys())

	res := c.Clean(context.Background(), root, "1990/Jan/2.pdf")
	assert.Equal(t, StatusFailed, res.Status)
	require.ErrorIs(t, res.Err, archive.ErrCorruptDocument)
	assert.ErrorContains(t, res.Err, "slice bounds out of range")
}

func TestCleanCanceled(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeRaw(t, root, "1990/Jan/1.pdf", "322 Phil. 122")
	c := NewCleaner(fakeProcessor{}, nil, memory.NewBlobStore(), nil, CleanerConfig{Workers: 1}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	res := c.Clean(ctx, root, "1990/Jan/1.pdf")
	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

func TestListPDFs(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeRaw(t, root, "1990/Feb/b.pdf", "")
	writeRaw(t, root, "1990/Feb/a.pdf", "")
	writeRaw(t, root, "1990/Feb/.a.pdf.123.part", "")
	writeRaw(t, root, "1990/notes.txt", "")

	got, err := ListPDFs(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"1990/Feb/a.pdf", "1990/Feb/b.pdf"}, got)

	_, err = ListPDFs(filepath.Join(root, "missing"))
	assert.Error(t, err)
}
