package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hubenschmidt/go-dupimg/core"
	"github.com/hubenschmidt/go-dupimg/match"
	"github.com/hubenschmidt/go-dupimg/phash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, dir, name string, shade uint8) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			v := shade
			if x < 20 {
				v = 255 - shade
			}
			img.Set(x, y, color.RGBA{R: v, G: uint8(y * 6), B: v, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestHashFiles(t *testing.T) {
	dir := t.TempDir()
	a := writePNG(t, dir, "a.png", 10)
	b := writePNG(t, dir, "b.png", 10)
	bad := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o600))
	missing := filepath.Join(dir, "missing.png")

	results, err := hashFiles(context.Background(), phash.DefaultHasher, []string{a, b, bad, missing})
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, a, results[0].Path)
	require.NoError(t, results[0].Err)
	require.NoError(t, results[1].Err)
	assert.Equal(t, results[0].Fingerprint, results[1].Fingerprint)
	assert.ErrorIs(t, results[2].Err, core.ErrDecode)
	assert.ErrorIs(t, results[3].Err, os.ErrNotExist)
}

func TestHashFilesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := hashFiles(ctx, phash.DefaultHasher, []string{"x.png"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveOperand(t *testing.T) {
	fp, err := resolveOperand(phash.DefaultHasher, "00000000000000ff")
	require.NoError(t, err)
	assert.Equal(t, core.Fingerprint(0xff), fp)

	path := writePNG(t, t.TempDir(), "img.png", 200)
	fromFile, err := resolveOperand(phash.DefaultHasher, path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want, err := phash.Extract(data)
	require.NoError(t, err)
	assert.Equal(t, want, fromFile)

	_, err = resolveOperand(phash.DefaultHasher, filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestReadAttachment(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "img.png", 1)
	att, err := readAttachment(path)
	require.NoError(t, err)
	assert.Equal(t, match.KindDocument, att.Kind)
	assert.Equal(t, "image/png", att.MIME)
	assert.True(t, att.IsImage())

	raw := filepath.Join(dir, "upload")
	require.NoError(t, os.WriteFile(raw, []byte{1, 2, 3}, 0o600))
	att, err = readAttachment(raw)
	require.NoError(t, err)
	assert.Equal(t, match.KindPhoto, att.Kind)
}

func TestPrintOutcome(t *testing.T) {
	var buf bytes.Buffer
	printOutcome(&buf, match.Outcome{Kind: match.Duplicate, Match: &core.Match{Record: 4, Distance: 2}})
	printOutcome(&buf, match.Outcome{Kind: match.Recorded, Fingerprint: 0xab})
	printOutcome(&buf, match.Outcome{Kind: match.NotAnImage})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "record 4  dst 2")
	assert.Contains(t, lines[1], "00000000000000ab")
	assert.Contains(t, lines[2], "not_an_image")
}

func TestIngestAndCompareCommands(t *testing.T) {
	dir := t.TempDir()
	dsn := "sqlite://" + filepath.Join(dir, "dupimg.db")
	img := writePNG(t, dir, "a.png", 30)

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs(append(args, "--dsn", dsn))
		require.NoError(t, rootCmd.Execute())
		return out.String()
	}

	assert.Contains(t, run("ingest", "-p", "1", "-r", "10", img), "recorded")
	assert.Contains(t, run("ingest", "-p", "1", "-r", "11", img), "record 10  dst 0")
	assert.Contains(t, run("compare", "-p", "1", "-x", "10", img), "no_prior_records")
	assert.Contains(t, run("compare", "-p", "2", img), "no_prior_records")
	assert.Contains(t, run("distance", img, img), "dst 0")
}
