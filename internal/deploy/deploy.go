// Package deploy publishes a rendered site to a GitHub Pages branch.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	derrors "git.home.luguber.info/inful/docs2static/internal/foundation/errors"
	"git.home.luguber.info/inful/docs2static/internal/logfields"
)

// CommitMessage is the message of every deployment commit.
const CommitMessage = "Déploiement automatique via Docs2Static"

// Options configure a Publisher.
type Options struct {
	Branch      string
	AuthorName  string
	AuthorEmail string
	// SSHKeyPath selects a private key; the SSH agent is used when empty.
	SSHKeyPath string
	// Auth overrides the SSH authentication derived from the options.
	Auth transport.AuthMethod
}

// Publisher force-pushes a directory as a single commit.
type Publisher struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// New returns a Publisher.
func New(opts Options, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Branch == "" {
		opts.Branch = "gh-pages"
	}
	if opts.AuthorName == "" {
		opts.AuthorName = "Docs2Static Bot"
	}
	if opts.AuthorEmail == "" {
		opts.AuthorEmail = "bot@docs2static.local"
	}
	return &Publisher{opts: opts, logger: logger, now: time.Now}
}

// Publish commits everything below dir into a fresh repository and
// force-pushes it to the configured branch of repo. It returns the GitHub
// Pages URL of repo, or "" when it has none.
func (p *Publisher) Publish(ctx context.Context, dir, repo string) (string, error) {
	if repo == "" {
		return "", derrors.ConfigError("no repository configured for deployment (set GITHUB_REPO)").Build()
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", derrors.BackendError("build output directory not found").
			WithContext("path", dir).
			Build()
	}
	remote := EnsureSSHURL(repo)
	if remote != repo {
		p.logger.Info("Using SSH remote for deployment", logfields.URL(remote))
	}

	// Each deployment is a single fresh commit.
	if err := os.RemoveAll(filepath.Join(dir, ".git")); err != nil {
		return "", gitErr(err, "reset repository", dir)
	}
	r, err := git.PlainInit(dir, false)
	if err != nil {
		return "", gitErr(err, "init repository", dir)
	}
	wt, err := r.Worktree()
	if err != nil {
		return "", gitErr(err, "open worktree", dir)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", gitErr(err, "stage files", dir)
	}
	hash, err := wt.Commit(CommitMessage, &git.CommitOptions{
		Author:            &object.Signature{Name: p.opts.AuthorName, Email: p.opts.AuthorEmail, When: p.now()},
		AllowEmptyCommits: true,
	})
	if err != nil {
		return "", gitErr(err, "commit", dir)
	}
	branch := plumbing.NewBranchReferenceName(p.opts.Branch)
	if err := r.Storer.SetReference(plumbing.NewHashReference(branch, hash)); err != nil {
		return "", gitErr(err, "create branch", dir)
	}
	if _, err := r.CreateRemote(&gitconfig.RemoteConfig{Name: "origin", URLs: []string{remote}}); err != nil {
		return "", gitErr(err, "add remote", dir)
	}

	auth, err := p.auth(remote)
	if err != nil {
		return "", err
	}
	p.logger.Info("Pushing site", logfields.URL(remote), slog.String("branch", p.opts.Branch))
	err = r.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(fmt.Sprintf("+%s:%s", branch, branch))},
		Auth:       auth,
		Force:      true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return "", derrors.WrapError(err, derrors.CategoryGit, "push failed").
			WithContext("remote", remote).
			WithContext("branch", p.opts.Branch).
			Build()
	}

	pages := PagesURL(remote)
	p.logger.Info("Site deployed", logfields.URL(pages), slog.String("commit", hash.String()[:8]))
	return pages, nil
}

func (p *Publisher) auth(remote string) (transport.AuthMethod, error) {
	if p.opts.Auth != nil {
		return p.opts.Auth, nil
	}
	ep, err := transport.NewEndpoint(remote)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryConfig, "invalid repository URL").
			WithContext("remote", remote).
			Build()
	}
	if ep.Protocol != "ssh" {
		return nil, nil
	}
	user := ep.User
	if user == "" {
		user = "git"
	}
	if p.opts.SSHKeyPath != "" {
		keys, err := ssh.NewPublicKeysFromFile(user, p.opts.SSHKeyPath, "")
		if err != nil {
			return nil, derrors.WrapError(err, derrors.CategoryGit, "failed to load SSH key").
				WithContext("path", p.opts.SSHKeyPath).
				Build()
		}
		return keys, nil
	}
	agent, err := ssh.NewSSHAgentAuth(user)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryGit, "no SSH agent available (set backend.ssh_key_path)").Build()
	}
	return agent, nil
}

func gitErr(err error, op, dir string) error {
	return derrors.WrapError(err, derrors.CategoryGit, op+" failed").
		WithContext("path", dir).
		Build()
}

var (
	githubHTTPS = regexp.MustCompile(`^https?://github\.com/([^/]+)/([^/]+?)(?:\.git)?/?$`)
	githubSSH   = regexp.MustCompile(`^git@github\.com:([^/]+)/([^/]+?)(?:\.git)?$`)
)

// EnsureSSHURL rewrites a GitHub HTTPS URL to its SSH form so pushes never
// prompt for a password. Other URLs are returned unchanged.
func EnsureSSHURL(url string) string {
	if url == "" || strings.HasPrefix(url, "git@") || strings.Contains(url, "ssh://") {
		return url
	}
	if m := githubHTTPS.FindStringSubmatch(url); m != nil {
		return fmt.Sprintf("git@github.com:%s/%s.git", m[1], m[2])
	}
	return url
}

// PagesURL returns the GitHub Pages address of a GitHub repository URL, or
// the input itself when it is not one.
func PagesURL(repo string) string {
	for _, re := range []*regexp.Regexp{githubSSH, githubHTTPS} {
		if m := re.FindStringSubmatch(repo); m != nil {
			return fmt.Sprintf("https://%s.github.io/%s/", m[1], m[2])
		}
	}
	return repo
}
