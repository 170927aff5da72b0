package githubapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultGitHubAPIBaseURL = "https://api.github.com/"

// maxPatchSnippet bounds how much of a file patch is carried per commit file.
const maxPatchSnippet = 200

// CommitAuthor identifies who authored a commit.
type CommitAuthor struct {
	Name  string
	Email string
	Login string
}

// CommitStats carries line change totals for a commit.
type CommitStats struct {
	Additions int
	Deletions int
}

// ChangedFile is one changed file in a commit detail response.
type ChangedFile struct {
	Filename  string
	Additions int
	Deletions int
	Patch     string
}

// CommitRecord is a normalized commit. List responses populate message, date
// and author; detail responses additionally populate stats and files.
type CommitRecord struct {
	SHA     string
	Message string
	Date    string
	Author  CommitAuthor
	Stats   CommitStats
	Files   []ChangedFile
}

// RepoInfo is repository metadata relevant to analysis.
type RepoInfo struct {
	Description  string
	Topics       []string
	Language     string
	Stars        int
	Forks        int
	Dependencies map[string]string
}

// DataClient is a typed GitHub REST client for analysis-relevant endpoints.
type DataClient struct {
	baseURL       *url.URL
	requestClient *Client
	logger        *zap.Logger
}

// NewDataClient creates a typed data client over the generic retry client.
func NewDataClient(baseURL string, requestClient *Client, logger *zap.Logger) (*DataClient, error) {
	if requestClient == nil {
		return nil, fmt.Errorf("request client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	parsed, err := parseAPIBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	return &DataClient{
		baseURL:       parsed,
		requestClient: requestClient,
		logger:        logger,
	}, nil
}

// ListCommits lists up to limit commits on the default branch, newest first.
func (c *DataClient) ListCommits(ctx context.Context, owner, repo string, limit int) ([]CommitRecord, error) {
	trimmedOwner := strings.TrimSpace(owner)
	trimmedRepo := strings.TrimSpace(repo)
	if trimmedOwner == "" {
		return nil, fmt.Errorf("owner is required")
	}
	if trimmedRepo == "" {
		return nil, fmt.Errorf("repo is required")
	}
	if limit <= 0 {
		limit = 100
	}

	var commits []CommitRecord
	page := 1
	for {
		reqURL := c.cloneBaseURL()
		reqURL.Path = joinURLPath(reqURL.Path, "repos", url.PathEscape(trimmedOwner), url.PathEscape(trimmedRepo), "commits")
		query := reqURL.Query()
		query.Set("per_page", strconv.Itoa(min(limit, 100)))
		query.Set("page", strconv.Itoa(page))
		reqURL.RawQuery = query.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("build list commits request: %w", err)
		}

		resp, err := c.requestClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("list commits request failed: %w", err)
		}

		var payload []commitListPayload
		if err := decodeJSONAndClose(resp, &payload); err != nil {
			return nil, fmt.Errorf("decode list commits response: %w", err)
		}

		for _, commit := range payload {
			commits = append(commits, commitFromListPayload(commit))
			if len(commits) >= limit {
				return commits, nil
			}
		}

		if len(payload) == 0 || !hasNextPage(resp.Header.Get("Link")) {
			break
		}
		page++
	}

	return commits, nil
}

// GetCommitDetail reads one commit including stats and changed files.
func (c *DataClient) GetCommitDetail(ctx context.Context, owner, repo, sha string) (CommitRecord, error) {
	trimmedOwner := strings.TrimSpace(owner)
	trimmedRepo := strings.TrimSpace(repo)
	trimmedSHA := strings.TrimSpace(sha)
	if trimmedOwner == "" {
		return CommitRecord{}, fmt.Errorf("owner is required")
	}
	if trimmedRepo == "" {
		return CommitRecord{}, fmt.Errorf("repo is required")
	}
	if trimmedSHA == "" {
		return CommitRecord{}, fmt.Errorf("sha is required")
	}

	reqURL := c.cloneBaseURL()
	reqURL.Path = joinURLPath(reqURL.Path, "repos", url.PathEscape(trimmedOwner), url.PathEscape(trimmedRepo), "commits", url.PathEscape(trimmedSHA))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return CommitRecord{}, fmt.Errorf("build commit detail request: %w", err)
	}

	resp, err := c.requestClient.Do(req)
	if err != nil {
		return CommitRecord{}, fmt.Errorf("commit detail request failed: %w", err)
	}

	var payload commitDetailPayload
	if err := decodeJSONAndClose(resp, &payload); err != nil {
		return CommitRecord{}, fmt.Errorf("decode commit detail response: %w", err)
	}

	record := commitFromListPayload(payload.commitListPayload)
	record.Stats = CommitStats{
		Additions: payload.Stats.Additions,
		Deletions: payload.Stats.Deletions,
	}
	for _, file := range payload.Files {
		record.Files = append(record.Files, ChangedFile{
			Filename:  file.Filename,
			Additions: file.Additions,
			Deletions: file.Deletions,
			Patch:     truncatePatch(file.Patch),
		})
	}
	return record, nil
}

// HydrateCommitDetails fetches commit details with a bounded worker pool.
// A single commit's failure is logged and the list entry is kept without
// stats rather than aborting the whole batch.
func (c *DataClient) HydrateCommitDetails(ctx context.Context, owner, repo string, commits []CommitRecord, concurrency int) []CommitRecord {
	if len(commits) == 0 {
		return nil
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	hydrated := make([]CommitRecord, len(commits))
	copy(hydrated, commits)

	semaphore := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i := range hydrated {
		if hydrated[i].SHA == "" {
			continue
		}
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			detail, err := c.GetCommitDetail(ctx, owner, repo, hydrated[index].SHA)
			if err != nil {
				c.logger.Warn("commit detail fetch skipped",
					zap.String("owner", owner),
					zap.String("repo", repo),
					zap.String("sha", hydrated[index].SHA),
					zap.Error(err),
				)
				return
			}
			hydrated[index] = detail
		}(i)
	}
	wg.Wait()
	return hydrated
}

// GetRepoInfo reads repository metadata and the dependency manifest.
// Manifest absence is not an error; it yields an empty dependency map.
func (c *DataClient) GetRepoInfo(ctx context.Context, owner, repo string) (RepoInfo, error) {
	trimmedOwner := strings.TrimSpace(owner)
	trimmedRepo := strings.TrimSpace(repo)
	if trimmedOwner == "" {
		return RepoInfo{}, fmt.Errorf("owner is required")
	}
	if trimmedRepo == "" {
		return RepoInfo{}, fmt.Errorf("repo is required")
	}

	reqURL := c.cloneBaseURL()
	reqURL.Path = joinURLPath(reqURL.Path, "repos", url.PathEscape(trimmedOwner), url.PathEscape(trimmedRepo))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return RepoInfo{}, fmt.Errorf("build repo info request: %w", err)
	}

	resp, err := c.requestClient.Do(req)
	if err != nil {
		return RepoInfo{}, fmt.Errorf("repo info request failed: %w", err)
	}

	var payload repoInfoPayload
	if err := decodeJSONAndClose(resp, &payload); err != nil {
		return RepoInfo{}, fmt.Errorf("decode repo info response: %w", err)
	}

	info := RepoInfo{
		Description:  payload.Description,
		Topics:       payload.Topics,
		Language:     payload.Language,
		Stars:        payload.StargazersCount,
		Forks:        payload.ForksCount,
		Dependencies: map[string]string{},
	}

	dependencies, err := c.fetchDependencyManifest(ctx, trimmedOwner, trimmedRepo)
	if err != nil {
		c.logger.Debug("dependency manifest unavailable",
			zap.String("owner", trimmedOwner),
			zap.String("repo", trimmedRepo),
			zap.Error(err),
		)
		return info, nil
	}
	info.Dependencies = dependencies
	return info, nil
}

// GetFileContent reads one file's decoded content from the default branch.
func (c *DataClient) GetFileContent(ctx context.Context, owner, repo, path string) ([]byte, error) {
	reqURL := c.cloneBaseURL()
	reqURL.Path = joinURLPath(reqURL.Path, "repos", url.PathEscape(owner), url.PathEscape(repo), "contents", path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build file content request: %w", err)
	}

	resp, err := c.requestClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("file content request failed: %w", err)
	}

	var payload fileContentPayload
	if err := decodeJSONAndClose(resp, &payload); err != nil {
		return nil, fmt.Errorf("decode file content response: %w", err)
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(payload.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("decode file content: %w", err)
	}
	return decoded, nil
}

func (c *DataClient) fetchDependencyManifest(ctx context.Context, owner, repo string) (map[string]string, error) {
	content, err := c.GetFileContent(ctx, owner, repo, "package.json")
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return map[string]string{}, nil
		}
		return nil, err
	}

	var manifest struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(content, &manifest); err != nil {
		return nil, fmt.Errorf("parse dependency manifest: %w", err)
	}

	dependencies := make(map[string]string, len(manifest.Dependencies)+len(manifest.DevDependencies))
	for name, version := range manifest.Dependencies {
		dependencies[name] = version
	}
	for name, version := range manifest.DevDependencies {
		dependencies[name] = version
	}
	return dependencies, nil
}

func commitFromListPayload(payload commitListPayload) CommitRecord {
	record := CommitRecord{
		SHA:     payload.SHA,
		Message: payload.Commit.Message,
		Date:    payload.Commit.Author.Date,
		Author: CommitAuthor{
			Name:  payload.Commit.Author.Name,
			Email: payload.Commit.Author.Email,
		},
	}
	if payload.Author != nil {
		record.Author.Login = payload.Author.Login
	}
	return record
}

func truncatePatch(patch string) string {
	if len(patch) <= maxPatchSnippet {
		return patch
	}
	return patch[:maxPatchSnippet]
}

func parseAPIBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultGitHubAPIBaseURL
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse github api base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse github api base url: missing scheme or host")
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	return parsed, nil
}

func (c *DataClient) cloneBaseURL() *url.URL {
	cloned := *c.baseURL
	return &cloned
}

func joinURLPath(base string, segments ...string) string {
	trimmedBase := strings.TrimSuffix(base, "/")
	builder := strings.Builder{}
	builder.WriteString(trimmedBase)
	for _, segment := range segments {
		builder.WriteString("/")
		builder.WriteString(strings.TrimPrefix(segment, "/"))
	}
	return builder.String()
}

func decodeJSONAndClose(resp *http.Response, target any) error {
	defer resp.Body.Close()
	decoder := json.NewDecoder(resp.Body)
	return decoder.Decode(target)
}

func hasNextPage(linkHeader string) bool {
	if strings.TrimSpace(linkHeader) == "" {
		return false
	}
	for _, part := range strings.Split(linkHeader, ",") {
		if strings.Contains(part, `rel="next"`) {
			return true
		}
	}
	return false
}

// ParseCommitDate parses an ISO commit timestamp, returning the zero time on failure.
func ParseCommitDate(raw string) time.Time {
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

type commitListPayload struct {
	SHA    string          `json:"sha"`
	Author *userPayload    `json:"author"`
	Commit commitCoreBlock `json:"commit"`
}

type commitCoreBlock struct {
	Message string            `json:"message"`
	Author  commitAuthorBlock `json:"author"`
}

type commitAuthorBlock struct {
	Date  string `json:"date"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type commitDetailPayload struct {
	commitListPayload
	Stats struct {
		Additions int `json:"additions"`
		Deletions int `json:"deletions"`
	} `json:"stats"`
	Files []changedFilePayload `json:"files"`
}

type changedFilePayload struct {
	Filename  string `json:"filename"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch"`
}

type repoInfoPayload struct {
	Description     string   `json:"description"`
	Topics          []string `json:"topics"`
	Language        string   `json:"language"`
	StargazersCount int      `json:"stargazers_count"`
	ForksCount      int      `json:"forks_count"`
}

type fileContentPayload struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type userPayload struct {
	Login string `json:"login"`
}
