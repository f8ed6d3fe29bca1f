// Package sandbox provisions an isolated working directory holding a
// shallow clone of the target repo for the agent runner to operate
// in (grounded on app/sandbox/manager.py's SandboxManager). Only the
// local tmpdir strategy is implemented; the original's Daytona remote
// sandbox backend has no fetchable Go SDK in this pack (DESIGN.md).
package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/falconwiki/falcon/internal/apperrors"
)

// Kind identifies the sandbox backend that produced a Sandbox.
type Kind string

const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
)

// Sandbox is a provisioned working directory for one wiki generation
// job.
type Sandbox struct {
	WorkingDir string
	Kind       Kind

	cleanupPath string // non-empty for local sandboxes; rm -rf target on Destroy
}

// Provider creates and tears down sandboxes. As an interface it lets
// a fake implementation stand in for shelling out to git.
type Provider interface {
	Create(ctx context.Context, githubURL, branch string) (*Sandbox, error)
	Destroy(ctx context.Context, sb *Sandbox) error
}

// LocalProvider clones repositories into a temp directory on the host
// running the orchestrator. This is the only Provider implementation
// carried forward from the teacher's GitRunner pattern (pkg/tools/git.go):
// os/exec wrapping a CommandContext call, stderr captured for the
// error message.
type LocalProvider struct {
	// BaseDir overrides os.MkdirTemp's default (empty string: OS temp
	// dir).
	BaseDir string
}

var _ Provider = (*LocalProvider)(nil)

// Create shallow-clones githubURL at branch into a fresh temp
// directory and returns its repo subdirectory as WorkingDir
// (grounded on _create_local_sandbox's tempfile.mkdtemp + git clone
// --depth=1 -b branch).
func (p *LocalProvider) Create(ctx context.Context, githubURL, branch string) (*Sandbox, error) {
	tmpDir, err := os.MkdirTemp(p.BaseDir, "falcon_")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Acquisition, "create sandbox tmpdir", err)
	}
	repoDir := filepath.Join(tmpDir, "repo")

	cmd := exec.CommandContext(ctx, "git", "clone", "--depth=1", "-b", branch, githubURL, repoDir)
	var out strings.Builder
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		os.RemoveAll(tmpDir)
		return nil, apperrors.Wrap(apperrors.SourceHost, fmt.Sprintf("git clone failed: %s", strings.TrimSpace(out.String())), err)
	}

	return &Sandbox{WorkingDir: repoDir, Kind: KindLocal, cleanupPath: tmpDir}, nil
}

// Destroy removes the sandbox's temp directory tree; a sandbox of any
// other Kind yields ErrUnsupportedSandboxKind.
func (p *LocalProvider) Destroy(ctx context.Context, sb *Sandbox) error {
	if sb.Kind != KindLocal {
		return ErrUnsupportedSandboxKind
	}
	if sb.cleanupPath == "" {
		return nil
	}
	return os.RemoveAll(sb.cleanupPath)
}

// ErrUnsupportedSandboxKind is returned by providers that cannot
// destroy a sandbox Kind they did not create — the typed replacement
// for the original's silent "cleanup not yet implemented" log line
// when a remote-backed provider is asked to tear down a kind it
// doesn't own.
var ErrUnsupportedSandboxKind = apperrors.New(apperrors.InvalidInput, "sandbox kind not supported by this provider")
