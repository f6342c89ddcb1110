package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FairForge/intelvault/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fileObject() *catalog.Object {
	return &catalog.Object{
		Kind: catalog.KindFile,
		ID:   "aabbcc",
		File: &catalog.FileAttributes{
			MD5:     "d41d8cd98f00b204e9800998ecf8427e",
			SHA1:    "da39a3ee5e6b4b0d3255bfef95601890afd80709",
			SHA256:  "aabbcc",
			TypeTag: "peexe",
			Tags:    []string{"exe", "packed"},
			Size:    4096,
		},
		Stats: &catalog.AnalysisStats{Malicious: 12, Undetected: 4},
	}
}

func TestRenderer_Render(t *testing.T) {
	t.Run("writes the summary file once", func(t *testing.T) {
		var stdout bytes.Buffer
		r := NewRenderer(Options{Stdout: &stdout}, zap.NewNop())
		path := filepath.Join(t.TempDir(), "aabbcc")

		r.Render(fileObject(), path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		content := string(data)
		assert.True(t, strings.HasPrefix(content, "aabbcc\n"))
		assert.Contains(t, content, "MD5:")
		assert.Contains(t, content, "d41d8cd98f00b204e9800998ecf8427e")
		assert.Contains(t, content, "Malicious:")

		// a second render must not rewrite the report
		before, _ := os.Stat(path)
		other := fileObject()
		other.File.MD5 = "changed"
		r.Render(other, path)
		after, _ := os.Stat(path)
		assert.Equal(t, before.Size(), after.Size())
	})

	t.Run("always prints the identifier", func(t *testing.T) {
		var stdout bytes.Buffer
		r := NewRenderer(Options{Stdout: &stdout}, zap.NewNop())

		r.Render(fileObject(), "")
		assert.Contains(t, stdout.String(), "aabbcc")
	})

	t.Run("verbosity gates on-screen fields", func(t *testing.T) {
		var quiet, chatty bytes.Buffer

		NewRenderer(Options{Stdout: &quiet}, zap.NewNop()).Render(fileObject(), "")
		NewRenderer(Options{Verbose: 2, Stdout: &chatty}, zap.NewNop()).Render(fileObject(), "")

		assert.NotContains(t, quiet.String(), "MD5:")
		assert.Contains(t, chatty.String(), "MD5:")
	})

	t.Run("urls display the url text", func(t *testing.T) {
		var stdout bytes.Buffer
		r := NewRenderer(Options{Stdout: &stdout}, zap.NewNop())

		obj := &catalog.Object{
			Kind: catalog.KindURL,
			ID:   "u-opaque-id",
			URL:  &catalog.URLAttributes{URL: "http://malicious.example/payload"},
		}
		r.Render(obj, "")
		assert.Contains(t, stdout.String(), "http://malicious.example/payload")
	})
}

func scannedFileObject() *catalog.Object {
	obj := fileObject()
	obj.File.Results = map[string]catalog.EngineResult{
		"Acme":  {EngineName: "Acme", Category: "malicious", Result: "Trojan.GenericKD.7512", EngineUpdate: "20260801"},
		"Beta":  {EngineName: "Beta", Category: "undetected"},
		"Gamma": {EngineName: "Gamma", Category: "malicious", Result: strings.Repeat("x", 50), EngineUpdate: "20260802"},
	}
	return obj
}

func TestRenderer_ScanResults(t *testing.T) {
	t.Run("engine verdicts appear on screen at the highest verbosity", func(t *testing.T) {
		var stdout bytes.Buffer
		r := NewRenderer(Options{Verbose: 3, Stdout: &stdout}, zap.NewNop())

		r.Render(scannedFileObject(), "")

		out := stdout.String()
		assert.Contains(t, out, "Acme")
		assert.Contains(t, out, "Trojan.GenericKD.7512")
		assert.Contains(t, out, "(Signature Database: 20260801)")
		// engines without a signature or database date show placeholders
		assert.Contains(t, out, "--")
		// long signatures are truncated for display
		assert.Contains(t, out, strings.Repeat("x", 40)+" (...)")
		assert.NotContains(t, out, strings.Repeat("x", 41))
	})

	t.Run("engine verdicts stay off screen below level 3", func(t *testing.T) {
		var stdout bytes.Buffer
		r := NewRenderer(Options{Verbose: 2, Stdout: &stdout}, zap.NewNop())

		r.Render(scannedFileObject(), "")
		assert.NotContains(t, stdout.String(), "Acme")
	})

	t.Run("the summary file always carries the engine verdicts", func(t *testing.T) {
		var stdout bytes.Buffer
		r := NewRenderer(Options{Stdout: &stdout}, zap.NewNop())
		path := filepath.Join(t.TempDir(), "aabbcc")

		r.Render(scannedFileObject(), path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "Acme")
		assert.Contains(t, string(data), "Trojan.GenericKD.7512")
	})
}

func TestRenderer_CSV(t *testing.T) {
	t.Run("exports one row per rendered artifact", func(t *testing.T) {
		dir := t.TempDir()
		var stdout bytes.Buffer
		r := NewRenderer(Options{CSV: true, Separator: ";", Stdout: &stdout}, zap.NewNop())
		require.NoError(t, r.OpenCSV(dir, true))

		r.Render(fileObject(), "")
		require.NoError(t, r.Close())

		data, err := os.ReadFile(filepath.Join(dir, "search.csv"))
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasPrefix(lines[0], "#SHA256"))
		assert.Contains(t, lines[1], "aabbcc")
		assert.Contains(t, lines[1], "exe|packed")
		assert.Contains(t, lines[1], ";12;") // malicious verdicts column
	})

	t.Run("network rows carry the artifact columns", func(t *testing.T) {
		dir := t.TempDir()
		var stdout bytes.Buffer
		r := NewRenderer(Options{CSV: true, Separator: ";", Stdout: &stdout}, zap.NewNop())
		require.NoError(t, r.OpenCSV(dir, true))

		r.WriteNetworkRow(fileObject(), "203.0.113.7", "443", "")
		require.NoError(t, r.Close())

		data, err := os.ReadFile(filepath.Join(dir, "network.csv"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "203.0.113.7")
		assert.Contains(t, string(data), "aabbcc")
	})

	t.Run("the export switches to engine rows at the highest verbosity", func(t *testing.T) {
		dir := t.TempDir()
		var stdout bytes.Buffer
		r := NewRenderer(Options{CSV: true, Separator: ";", Verbose: 3, Stdout: &stdout}, zap.NewNop())
		require.NoError(t, r.OpenCSV(dir, false))

		r.Render(scannedFileObject(), "")
		// an artifact without engine results contributes no rows
		r.Render(fileObject(), "")
		require.NoError(t, r.Close())

		data, err := os.ReadFile(filepath.Join(dir, "search.csv"))
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Len(t, lines, 4) // header plus one row per engine

		assert.Contains(t, lines[0], "Vendor;Signature;Result;Signature Database")
		assert.Contains(t, lines[1], "Acme;Trojan.GenericKD.7512;malicious;20260801")
		assert.Contains(t, lines[2], "Beta;;undetected;")
		// CSV rows carry the full signature, untruncated
		assert.Contains(t, lines[3], strings.Repeat("x", 50))
		for _, line := range lines[1:] {
			assert.True(t, strings.HasPrefix(line, "aabbcc;"))
		}
	})

	t.Run("no files are created when export is off", func(t *testing.T) {
		dir := t.TempDir()
		var stdout bytes.Buffer
		r := NewRenderer(Options{Stdout: &stdout}, zap.NewNop())
		require.NoError(t, r.OpenCSV(dir, true))

		_, err := os.Stat(filepath.Join(dir, "search.csv"))
		assert.True(t, os.IsNotExist(err))
	})
}
