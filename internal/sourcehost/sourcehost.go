// Package sourcehost fetches repository metadata from GitHub's REST
// API (grounded on app/services/github_service.py's GitHubService).
package sourcehost

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/falconwiki/falcon/internal/apperrors"
)

const baseURL = "https://api.github.com"

// Metadata mirrors RepoMetadata: the facts Phase 1 of wiki generation
// stamps onto the wiki row.
type Metadata struct {
	Owner            string
	Name             string
	Description      string
	DefaultBranch    string
	LatestCommitSHA  string
	Languages        map[string]float64 // byte share converted to percentages
	HTMLURL          string
}

// Client fetches repo metadata over the GitHub REST API.
type Client struct {
	HTTPClient *http.Client
	Token      string // optional; sent as a Bearer token when set
}

// New constructs a Client using http.DefaultClient.
func New(token string) *Client {
	return &Client{HTTPClient: http.DefaultClient, Token: token}
}

func (c *Client) headers(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	c.headers(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.SourceHost, "github request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return apperrors.New(apperrors.SourceHost, fmt.Sprintf("github returned %d: %s", resp.StatusCode, string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetMetadata fetches repo info, language byte counts, and the latest
// commit SHA on the default branch, combining three GitHub endpoints
// the way get_repo_metadata does.
func (c *Client) GetMetadata(ctx context.Context, owner, repo string) (*Metadata, error) {
	var repoData struct {
		Description   string `json:"description"`
		DefaultBranch string `json:"default_branch"`
		HTMLURL       string `json:"html_url"`
	}
	if err := c.get(ctx, fmt.Sprintf("%s/repos/%s/%s", baseURL, owner, repo), &repoData); err != nil {
		return nil, err
	}

	var rawLanguages map[string]float64
	if err := c.get(ctx, fmt.Sprintf("%s/repos/%s/%s/languages", baseURL, owner, repo), &rawLanguages); err != nil {
		return nil, err
	}
	languages := bytesToPercentages(rawLanguages)

	var commits []struct {
		SHA string `json:"sha"`
	}
	commitsURL := fmt.Sprintf("%s/repos/%s/%s/commits?per_page=1&sha=%s", baseURL, owner, repo, repoData.DefaultBranch)
	if err := c.get(ctx, commitsURL, &commits); err != nil {
		return nil, err
	}
	var latestSHA string
	if len(commits) > 0 {
		latestSHA = commits[0].SHA
	}

	return &Metadata{
		Owner:           owner,
		Name:            repo,
		Description:     repoData.Description,
		DefaultBranch:   repoData.DefaultBranch,
		LatestCommitSHA: latestSHA,
		Languages:       languages,
		HTMLURL:         repoData.HTMLURL,
	}, nil
}

// bytesToPercentages converts GitHub's per-language byte counts into
// percentages rounded to one decimal place, matching get_repo_metadata's
// round(v / total * 100, 1).
func bytesToPercentages(raw map[string]float64) map[string]float64 {
	var total float64
	for _, v := range raw {
		total += v
	}
	if total == 0 {
		total = 1
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		out[k] = roundTo1(v / total * 100)
	}
	return out
}

func roundTo1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

// SortedLanguageNames returns the languages in raw map ordered by
// descending percentage, convenient for display.
func SortedLanguageNames(languages map[string]float64) []string {
	names := make([]string, 0, len(languages))
	for k := range languages {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool { return languages[names[i]] > languages[names[j]] })
	return names
}
