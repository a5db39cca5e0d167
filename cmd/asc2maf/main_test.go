package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/asc2maf/internal/db"
	"github.com/banshee-data/asc2maf/internal/monitoring"
	"github.com/banshee-data/asc2maf/internal/testutil"
)

func singleTrial() string {
	return testutil.NewASC().
		Header(1000).
		TrialID(10002, "1").
		Show(10003, "img.png").
		Use(10003, "showdisboth").
		Sample(10004, "100.0", "200.0", "110.0", "210.0").
		Efix("R", 10004, 10004, 110.0, 210.0).
		Hide(10006).
		String()
}

// setup isolates the working directory and the package loggers.
func setup(t *testing.T) string {
	t.Helper()
	origLog, origProgress := monitoring.Logf, monitoring.Progressf
	t.Cleanup(func() {
		monitoring.Logf = origLog
		monitoring.Progressf = origProgress
	})
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersion(t *testing.T) {
	setup(t)
	code, out, _ := runCLI(t, "-version")
	assert.Equal(t, exitOK, code)
	assert.True(t, strings.HasPrefix(out, "asc2maf dev"), out)
}

func TestUsageErrors(t *testing.T) {
	dir := setup(t)
	tests := []struct {
		name string
		args []string
	}{
		{"no input", nil},
		{"unknown flag", []string{"-nope", dir}},
		{"invalid workers", []string{"-workers", "0", dir}},
		{"watch with two paths", []string{"-watch", dir, dir}},
		{"watch a file", []string{"-watch", testutil.WriteFile(t, dir, "exp002.asc", singleTrial())}},
		{"config not json", []string{"-config", testutil.WriteFile(t, dir, "c.yaml", ""), dir}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := runCLI(t, tt.args...)
			assert.Equal(t, exitUsage, code)
		})
	}
}

func TestConvertDirectory(t *testing.T) {
	dir := setup(t)
	data := filepath.Join(dir, "data")
	require.NoError(t, os.Mkdir(data, 0o755))
	testutil.WriteFile(t, data, "exp001.asc", testutil.NewASC().Start("RIGHT", "LEFT").String())
	testutil.WriteFile(t, data, "exp002.asc", singleTrial())
	testutil.WriteFile(t, data, "exp003.ASC", testutil.NewASC().Header(500).String())
	testutil.WriteFile(t, data, "notes.txt", "")

	code, out, errOut := runCLI(t, data)
	assert.Equal(t, exitFailed, code)

	want := "Converting " + filepath.Join(data, "exp001.asc") + " to " + filepath.Join(data, "exp001.maf") + "\n" +
		"Converting " + filepath.Join(data, "exp002.asc") + " to " + filepath.Join(data, "exp002.maf") + "\n" +
		"Converting " + filepath.Join(data, "exp003.ASC") + " to " + filepath.Join(data, "exp003.maf") + "\n"
	assert.Equal(t, want, out)
	assert.Contains(t, errOut, "wrong eye order")

	assert.NoFileExists(t, filepath.Join(data, "exp001.maf"))
	got, err := os.ReadFile(filepath.Join(data, "exp002.maf"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(got), "PARTICIPANT 002 \nPIXELSPERDEGREE 26.48 \nTRIAL 1 \n"))
	got, err = os.ReadFile(filepath.Join(data, "exp003.maf"))
	require.NoError(t, err)
	assert.Equal(t, "PARTICIPANT 003 \nPIXELSPERDEGREE 26.48 \n", string(got))
}

func TestConvertFilesQuiet(t *testing.T) {
	dir := setup(t)
	in := testutil.WriteFile(t, dir, "exp002.asc", singleTrial())

	code, out, errOut := runCLI(t, "-quiet", in)
	assert.Equal(t, exitOK, code)
	assert.Empty(t, out)
	assert.Empty(t, errOut)
	assert.FileExists(t, filepath.Join(dir, "exp002.maf"))
}

func TestMissingInput(t *testing.T) {
	dir := setup(t)
	code, _, errOut := runCLI(t, filepath.Join(dir, "missing"))
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, errOut, "missing")
}

func TestDotEnvAndFlagsOverride(t *testing.T) {
	dir := setup(t)
	in := testutil.WriteFile(t, dir, "exp002.asc", singleTrial())
	testutil.WriteFile(t, dir, ".env", "ASC2MAF_PIXELS_PER_DEGREE=30\nASC2MAF_REPORT=true\n")
	testutil.WriteFile(t, dir, "cfg.json", `{"pixels_per_degree": 20, "output_ext": ".txt"}`)

	code, _, _ := runCLI(t, "-quiet", "-config", "cfg.json", "-report=false", in)
	require.Equal(t, exitOK, code)

	got, err := os.ReadFile(filepath.Join(dir, "exp002.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(got), "PIXELSPERDEGREE 30.0 \n", "environment beats the config file")
	assert.NoFileExists(t, filepath.Join(dir, "exp002.html"), "flag beats the environment")
}

func TestExtrasAndCatalog(t *testing.T) {
	dir := setup(t)
	in := testutil.WriteFile(t, dir, "exp002.asc", singleTrial())
	plots := filepath.Join(dir, "plots")
	catalogPath := filepath.Join(dir, "catalog.db")

	code, _, _ := runCLI(t, "-quiet", "-plots", plots, "-report", "-catalog", catalogPath, "-workers", "2", in)
	require.Equal(t, exitOK, code)

	assert.FileExists(t, filepath.Join(plots, "002_000_1.png"))
	assert.FileExists(t, filepath.Join(dir, "exp002.html"))

	catalog, err := db.NewDB(catalogPath)
	require.NoError(t, err)
	defer catalog.Close()
	runs, err := catalog.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].FilesOK)
}

func TestWatchStopsWhenCancelled(t *testing.T) {
	dir := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	code := run(ctx, []string{"-quiet", "-watch", dir}, &stdout, &stderr)
	assert.Equal(t, exitOK, code)
}
