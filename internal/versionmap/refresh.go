package versionmap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

// ErrUnreachable indicates the remote version source could not be queried.
// Resolution against the last-known map still succeeds.
var ErrUnreachable = errors.New("version source unreachable")

// RefreshOptions controls where the authoritative version list is fetched
// from. Zero values fall back to the public GitHub API.
type RefreshOptions struct {
	APIBase    string
	Repo       string
	ToolsRepo  string
	HTTPClient *http.Client
}

type githubRelease struct {
	TagName     string    `json:"tag_name"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
}

type release struct {
	Version     string
	PublishedAt time.Time
}

// Refresh fetches the published frida release tags and returns a new map
// wholesale-replacing the current one. Tooling mappings carry over for
// versions that still exist upstream; new versions get a tooling version
// derived from the frida-tools release closest before the server release.
// Non-latest aliases carry over likewise; latest is repointed at the newest
// release.
func Refresh(ctx context.Context, current Map, opts RefreshOptions) (Map, error) {
	servers, err := fetchReleases(ctx, opts, repoOrDefault(opts.Repo, "frida/frida"))
	if err != nil {
		return Map{}, err
	}
	if len(servers) == 0 {
		return Map{}, fmt.Errorf("%w: release query returned no versions", ErrUnreachable)
	}

	tools, err := fetchReleases(ctx, opts, repoOrDefault(opts.ToolsRepo, "frida/frida-tools"))
	if err != nil {
		return Map{}, err
	}

	next := Map{
		RefreshedAt: time.Now().UTC(),
		Aliases:     map[string]string{},
		Mappings:    map[string]string{},
	}
	for _, server := range servers {
		if mapped, ok := current.Mappings[server.Version]; ok && mapped != "" {
			next.Mappings[server.Version] = mapped
			continue
		}
		next.Mappings[server.Version] = toolsVersionFor(tools, server.PublishedAt)
	}
	for alias, version := range current.Aliases {
		if _, ok := next.Mappings[version]; ok {
			next.Aliases[alias] = version
		}
	}
	next.Aliases["latest"] = next.Versions()[0]

	return next, nil
}

// toolsVersionFor picks the newest frida-tools release published at or before
// the server release. A server older than every tools release gets the oldest
// one rather than nothing.
func toolsVersionFor(tools []release, serverPublished time.Time) string {
	if len(tools) == 0 {
		return ""
	}
	sorted := make([]release, len(tools))
	copy(sorted, tools)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PublishedAt.Before(sorted[j].PublishedAt)
	})

	picked := sorted[0]
	for _, tool := range sorted {
		if tool.PublishedAt.After(serverPublished) {
			break
		}
		picked = tool
	}
	return picked.Version
}

func repoOrDefault(repo, fallback string) string {
	repo = strings.TrimSpace(repo)
	if repo == "" {
		return fallback
	}
	return repo
}

func fetchReleases(ctx context.Context, opts RefreshOptions, repo string) ([]release, error) {
	apiBase := strings.TrimRight(strings.TrimSpace(opts.APIBase), "/")
	if apiBase == "" {
		apiBase = "https://api.github.com"
	}
	url := apiBase + "/repos/" + repo + "/releases?per_page=100"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "fridamgr")

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: releases query failed: status=%d body=%s", ErrUnreachable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var raw []githubRelease
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode releases response: %w", err)
	}

	releases := make([]release, 0, len(raw))
	seen := map[string]struct{}{}
	for _, rel := range raw {
		if rel.Draft || rel.Prerelease {
			continue
		}
		tag := strings.TrimPrefix(strings.TrimSpace(rel.TagName), "v")
		if tag == "" || !semver.IsValid("v"+tag) {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		releases = append(releases, release{Version: tag, PublishedAt: rel.PublishedAt})
	}
	return releases, nil
}
