// Package git implements vcs.VCS by running the git binary.
//
// Every invocation captures stdout and stderr separately and reports a
// non-zero exit as a *vcs.CommandError. Commands that talk to the remote
// (fetch, pull, push, ls-remote, clone) run under a separate, longer
// timeout than local ones.
//
// Read-only status reporting goes through go-git instead (see Inspect).
package git

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"

	"github.com/mschirtzinger/td/internal/vcs"
)

// minUnrelatedHistoriesVersion is the first git release that accepts
// --allow-unrelated-histories (and refuses such merges without it).
const minUnrelatedHistoriesVersion = "v2.9.0"

// Options configures a Git instance.
type Options struct {
	// Timeout bounds local commands (default: vcs.DefaultTimeout)
	Timeout time.Duration

	// NetworkTimeout bounds remote commands (default: vcs.DefaultNetworkTimeout)
	NetworkTimeout time.Duration

	// Identity is passed as user.name/user.email to every command when set
	Identity vcs.Identity

	// Logger receives one debug record per git invocation
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = vcs.DefaultTimeout
	}
	if o.NetworkTimeout <= 0 {
		o.NetworkTimeout = vcs.DefaultNetworkTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// Git implements the VCS interface for a working tree.
type Git struct {
	// repoRoot is the working tree root
	repoRoot string

	opts Options

	versionOnce sync.Once
	version     string
	versionErr  error
}

var _ vcs.VCS = (*Git)(nil)

// New binds to the repository rooted at path. The path itself must carry
// the .git entry; parent directories are not searched.
func New(path string, opts Options) (*Git, error) {
	result, err := vcs.Detect(path)
	if err != nil {
		return nil, err
	}
	return &Git{repoRoot: result.RepoRoot, opts: opts.withDefaults()}, nil
}

// RepoRoot returns the working tree root
func (g *Git) RepoRoot() string {
	return g.repoRoot
}

// Version returns the git version (e.g. "2.39.0")
func (g *Git) Version(ctx context.Context) (string, error) {
	g.versionOnce.Do(func() {
		g.version, g.versionErr = gitVersion(ctx, g.repoRoot, g.opts.Timeout)
	})
	return g.version, g.versionErr
}

func gitVersion(ctx context.Context, dir string, timeout time.Duration) (string, error) {
	out, err := vcs.ExecContext(ctx, timeout, dir, "git", "--version")
	if err != nil {
		return "", fmt.Errorf("failed to get git version: %w", err)
	}

	// Output format: "git version 2.39.0" (possibly with a vendor suffix)
	version := strings.TrimPrefix(vcs.TrimOutput(out.Stdout), "git version ")
	return version, nil
}

// supportsUnrelatedHistories reports whether pull accepts
// --allow-unrelated-histories. Unknown versions are assumed modern.
func (g *Git) supportsUnrelatedHistories(ctx context.Context) bool {
	version, err := g.Version(ctx)
	if err != nil {
		return true
	}
	v := semverOf(version)
	if v == "" {
		return true
	}
	return semver.Compare(v, minUnrelatedHistoriesVersion) >= 0
}

// semverOf converts git's version string ("2.39.3 (Apple Git-146)",
// "2.45.1.windows.1") into a semver string ("v2.39.3"), or "" if it has
// no leading numeric components.
func semverOf(version string) string {
	fields := strings.Fields(version)
	if len(fields) == 0 {
		return ""
	}

	var parts []string
	for _, p := range strings.Split(fields[0], ".") {
		if p == "" || strings.IndexFunc(p, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
			break
		}
		parts = append(parts, p)
		if len(parts) == 3 {
			break
		}
	}
	if len(parts) == 0 {
		return ""
	}

	v := "v" + strings.Join(parts, ".")
	if !semver.IsValid(v) {
		return ""
	}
	return v
}

// globalArgs are prepended to every invocation.
func (g *Git) globalArgs() []string {
	if g.opts.Identity.IsZero() {
		return nil
	}
	var args []string
	if g.opts.Identity.Name != "" {
		args = append(args, "-c", "user.name="+g.opts.Identity.Name)
	}
	if g.opts.Identity.Email != "" {
		args = append(args, "-c", "user.email="+g.opts.Identity.Email)
	}
	return args
}

// run executes a local git command in the working tree.
func (g *Git) run(ctx context.Context, args ...string) (*vcs.Output, error) {
	return g.exec(ctx, g.opts.Timeout, args...)
}

// runNet executes a git command that talks to the remote.
func (g *Git) runNet(ctx context.Context, args ...string) (*vcs.Output, error) {
	return g.exec(ctx, g.opts.NetworkTimeout, args...)
}

func (g *Git) exec(ctx context.Context, timeout time.Duration, args ...string) (*vcs.Output, error) {
	full := append(g.globalArgs(), args...)
	start := time.Now()
	out, err := vcs.ExecContext(ctx, timeout, g.repoRoot, "git", full...)
	g.opts.Logger.Debug("git", "args", strings.Join(args, " "), "duration", time.Since(start), "err", err)
	return out, err
}
