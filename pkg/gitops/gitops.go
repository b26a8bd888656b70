// Package gitops shims the source-control operations the pipeline
// needs: clone, commit, push, and pull-request creation. It carries no
// analysis logic.
package gitops

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Coordinates identify a repository on the hosting service.
type Coordinates struct {
	Owner string
	Repo  string
}

func (c Coordinates) String() string {
	return c.Owner + "/" + c.Repo
}

// MissingRepositoryCoordinatesError reports that no repository URL or
// context hint was available. Publishing without coordinates would
// silently target a guessed repository, so this is an explicit error
// rather than a default.
type MissingRepositoryCoordinatesError struct {
	Hint string
}

func (e *MissingRepositoryCoordinatesError) Error() string {
	if e.Hint == "" {
		return "missing repository coordinates: no repository URL or context hint"
	}
	return fmt.Sprintf("missing repository coordinates: cannot derive owner/repo from %q", e.Hint)
}

// ParseCoordinates derives owner/repo coordinates from a repository
// URL. Supports https and ssh GitHub forms.
func ParseCoordinates(url string) (Coordinates, error) {
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return Coordinates{}, &MissingRepositoryCoordinatesError{}
	}

	trimmed = strings.TrimSuffix(trimmed, ".git")
	for _, prefix := range []string{"https://github.com/", "http://github.com/", "git@github.com:"} {
		if rest, ok := strings.CutPrefix(trimmed, prefix); ok {
			parts := strings.Split(rest, "/")
			if len(parts) >= 2 && parts[0] != "" && parts[1] != "" {
				return Coordinates{Owner: parts[0], Repo: parts[1]}, nil
			}
		}
	}

	return Coordinates{}, &MissingRepositoryCoordinatesError{Hint: url}
}

// Client runs git operations and talks to the GitHub API.
type Client struct {
	gitPath    string
	token      string
	apiBaseURL string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a gitops client. token may be empty for read-only
// use; push and PR creation require it.
func NewClient(token string, logger *zap.Logger) (*Client, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git not available: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		gitPath:    gitPath,
		token:      token,
		apiBaseURL: "https://api.github.com",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}, nil
}

// Clone checks the repository out into dest.
func (c *Client) Clone(ctx context.Context, url, dest string) error {
	if _, err := ParseCoordinates(url); err != nil {
		return err
	}
	return c.git(ctx, "", "clone", "--depth", "1", url, dest)
}

// CommitAndPush stages everything in dir, commits on a new branch, and
// pushes it.
func (c *Client) CommitAndPush(ctx context.Context, dir, branch, message string) error {
	if branch == "" {
		return fmt.Errorf("branch is required")
	}
	if err := c.git(ctx, dir, "checkout", "-b", branch); err != nil {
		return err
	}
	if err := c.git(ctx, dir, "add", "-A"); err != nil {
		return err
	}
	if err := c.git(ctx, dir, "commit", "-m", message); err != nil {
		return err
	}
	return c.git(ctx, dir, "push", "-u", "origin", branch)
}

// OpenPullRequest creates a pull request and returns its URL.
func (c *Client) OpenPullRequest(ctx context.Context, coords Coordinates, branch, title, body string) (string, error) {
	if c.token == "" {
		return "", fmt.Errorf("github token is required to open a pull request")
	}

	payload, err := json.Marshal(map[string]string{
		"title": title,
		"body":  body,
		"head":  branch,
		"base":  "main",
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/repos/%s/%s/pulls", c.apiBaseURL, coords.Owner, coords.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create pull request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create pull request: status %d", resp.StatusCode)
	}

	var created struct {
		HTMLURL string `json:"html_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode pull request response: %w", err)
	}
	return created.HTMLURL, nil
}

func (c *Client) git(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, c.gitPath, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
