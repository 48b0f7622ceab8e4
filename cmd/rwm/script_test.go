package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"golang.org/x/tools/txtar"
	"rsc.io/script"
	"rsc.io/script/scripttest"
)

var (
	rwmBinaryOnce sync.Once
	rwmBinaryPath string
	rwmBinaryErr  error
)

// ensureRwmBinary builds the rwm binary once per test run and returns
// its path.
func ensureRwmBinary(t testing.TB) string {
	t.Helper()
	rwmBinaryOnce.Do(func() {
		dir, err := os.MkdirTemp("", "rwm-script-bin-*")
		if err != nil {
			rwmBinaryErr = err
			return
		}

		name := "rwm"
		if runtime.GOOS == "windows" {
			name += ".exe"
		}
		outPath := filepath.Join(dir, name)

		_, file, _, ok := runtime.Caller(0)
		if !ok {
			rwmBinaryErr = errors.New("runtime caller unavailable")
			return
		}
		repoRoot := filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))

		cmd := exec.Command("go", "build", "-o", outPath, "./cmd/rwm")
		cmd.Dir = repoRoot
		cmd.Env = os.Environ()
		if output, err := cmd.CombinedOutput(); err != nil {
			rwmBinaryErr = fmt.Errorf("go build rwm: %w (output=%s)", err, string(output))
			return
		}
		rwmBinaryPath = outPath
	})
	if rwmBinaryErr != nil {
		t.Fatalf("build rwm binary: %v", rwmBinaryErr)
	}
	return rwmBinaryPath
}

// TestScript runs the end-to-end CLI scripts under testdata/script.
// Each .txt file is a txtar archive: the comment section is the
// script, the file sections are extracted into the work directory.
func TestScript(t *testing.T) {
	if testing.Short() {
		t.Skip("script tests build and exec the rwm binary")
	}
	binDir := filepath.Dir(ensureRwmBinary(t))

	files, err := filepath.Glob(filepath.Join("testdata", "script", "*.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("no scripts found under testdata/script")
	}

	ctx := context.Background()
	eng := &script.Engine{
		Cmds:  scripttest.DefaultCmds(),
		Conds: scripttest.DefaultConds(),
		Quiet: !testing.Verbose(),
	}

	for _, file := range files {
		file := file
		name := strings.TrimSuffix(filepath.Base(file), ".txt")
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			workdir := t.TempDir()

			s, err := script.NewState(ctx, workdir, scriptEnv(binDir, workdir))
			if err != nil {
				t.Fatal(err)
			}

			ar, err := txtar.ParseFile(file)
			if err != nil {
				t.Fatal(err)
			}
			if err := s.ExtractFiles(ar); err != nil {
				t.Fatal(err)
			}

			scripttest.Run(t, eng, s, filepath.Base(file), bytes.NewReader(ar.Comment))
		})
	}
}

// scriptEnv builds a hermetic environment: the rwm binary on PATH,
// HOME and the XDG config dir inside the work directory so no user
// config leaks in, and a pinned actor so identity never shells out.
func scriptEnv(binDir, workdir string) []string {
	return []string{
		"PATH=" + binDir + string(os.PathListSeparator) + os.Getenv("PATH"),
		"HOME=" + workdir,
		"XDG_CONFIG_HOME=" + filepath.Join(workdir, ".config"),
		"TERM=dumb",
		"RWM_ACTOR=script",
	}
}
