package env

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var ErrParserFailed = errors.New("env: parser failed")

// Parser runs the external environment parser: `<Path> <env> <out.json>`.
type Parser struct {
	Path string
	// Dir holds the intermediate JSON; empty means os.TempDir().
	Dir string
}

// Parse converts envPath into a type tree and indexes it. It blocks until the parser exits and
// must not run on the editor loop.
func (p Parser) Parse(ctx context.Context, envPath string) (*Environment, error) {
	if p.Path == "" {
		return nil, fmt.Errorf("%w: no parser configured", ErrParserFailed)
	}
	out, err := os.CreateTemp(p.Dir, "env-*.json")
	if err != nil {
		return nil, err
	}
	outPath := out.Name()
	_ = out.Close()
	defer os.Remove(outPath)

	cmd := exec.CommandContext(ctx, p.Path, envPath, outPath)
	cmd.Dir = filepath.Dir(envPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%w: %v: %s", ErrParserFailed, err, msg)
		}
		return nil, fmt.Errorf("%w: %v", ErrParserFailed, err)
	}
	return LoadFile(outPath, envPath)
}
