// Package hfhub publishes finished preference datasets to a Hugging Face
// dataset repository via the Hub commit API. Files under the LFS threshold
// are embedded base64 in the commit; larger files go through the Git LFS
// batch protocol first.
package hfhub

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	// DefaultEndpoint is the production Hub endpoint.
	DefaultEndpoint = "https://huggingface.co"

	// LFSThreshold is the size above which a file is committed as an LFS
	// pointer instead of embedded content (10MB, the Hub's own cutoff).
	LFSThreshold = 10 * 1024 * 1024

	defaultTimeout = 300 * time.Second
	uploadTimeout  = 600 * time.Second
	maxRetries     = 3
)

// DatasetFile maps a local output file to its path in the remote repository.
type DatasetFile struct {
	LocalPath string
	RepoPath  string
}

// Uploader pushes dataset files to a Hugging Face dataset repository.
type Uploader struct {
	endpoint   string
	token      string
	httpClient *http.Client
	lfsClient  *http.Client
	logger     *slog.Logger
}

// NewUploader creates an uploader authenticated with the given token.
func NewUploader(token string, logger *slog.Logger) *Uploader {
	return &Uploader{
		endpoint:   DefaultEndpoint,
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
		lfsClient:  &http.Client{Timeout: uploadTimeout},
		logger:     logger.With("component", "hf_uploader"),
	}
}

// Push uploads the files to repoID (format "owner/name") as one commit on
// main, creating the dataset repository if it does not exist yet.
func (u *Uploader) Push(ctx context.Context, repoID string, files []DatasetFile, message string) error {
	if len(files) == 0 {
		return fmt.Errorf("no files to upload")
	}

	u.logger.Info("Pushing dataset to Hugging Face Hub", "repo_id", repoID, "files", len(files))

	if err := u.ensureRepo(ctx, repoID); err != nil {
		return fmt.Errorf("failed to ensure repository: %w", err)
	}

	var operations []commitOperation
	var lfsObjects []lfsObject
	localByOID := make(map[string]string)

	for _, f := range files {
		op, err := prepareOperation(f.LocalPath, f.RepoPath)
		if err != nil {
			return fmt.Errorf("failed to prepare %s: %w", f.LocalPath, err)
		}
		operations = append(operations, *op)

		if op.LFS != nil {
			lfsObjects = append(lfsObjects, lfsObject{OID: op.LFS.SHA256, Size: op.LFS.Size})
			localByOID[op.LFS.SHA256] = f.LocalPath
			u.logger.Debug("File will use LFS", "file", f.RepoPath, "size", op.LFS.Size)
		} else {
			u.logger.Debug("File will be embedded", "file", f.RepoPath)
		}
	}

	if len(lfsObjects) > 0 {
		if err := u.uploadLFS(ctx, repoID, lfsObjects, localByOID); err != nil {
			return err
		}
	}

	if err := u.createCommit(ctx, repoID, "main", operations, message); err != nil {
		return fmt.Errorf("failed to create commit: %w", err)
	}

	u.logger.Info("Push completed",
		"repo_id", repoID,
		"url", fmt.Sprintf("%s/datasets/%s", u.endpoint, repoID))
	return nil
}

// ensureRepo creates the dataset repo if it does not already exist.
func (u *Uploader) ensureRepo(ctx context.Context, repoID string) error {
	checkURL := fmt.Sprintf("%s/api/datasets/%s", u.endpoint, repoID)
	req, err := http.NewRequestWithContext(ctx, "GET", checkURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+u.token)

	resp, err := u.httpClient.Do(req)
	if err == nil {
		status := resp.StatusCode
		_ = resp.Body.Close()
		if status == http.StatusOK {
			u.logger.Debug("Repository already exists", "repo_id", repoID)
			return nil
		}
	}

	owner, name, ok := strings.Cut(repoID, "/")
	if !ok || owner == "" || name == "" {
		return fmt.Errorf("invalid repo_id %q, expected owner/name", repoID)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"name":    name,
		"type":    "dataset",
		"private": false,
	})
	if err != nil {
		return err
	}

	req, err = http.NewRequestWithContext(ctx, "POST", u.endpoint+"/api/repos/create", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+u.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err = u.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	// Conflict means another process created it first, which is fine.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusConflict {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("create repo failed with status %d: %s", resp.StatusCode, string(body))
	}

	u.logger.Info("Repository created", "repo_id", repoID)
	return nil
}

// commitOperation is one "add" entry in a Hub commit.
type commitOperation struct {
	Path    string
	Content string // base64, for embedded files
	LFS     *lfsInfo
}

type lfsInfo struct {
	SHA256 string
	Size   int64
}

// prepareOperation hashes the local file and decides embedded vs LFS.
func prepareOperation(localPath, repoPath string) (*commitOperation, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, err
	}

	op := &commitOperation{Path: repoPath}
	if int64(len(data)) < LFSThreshold {
		op.Content = base64.StdEncoding.EncodeToString(data)
		return op, nil
	}

	sum := sha256.Sum256(data)
	op.LFS = &lfsInfo{
		SHA256: hex.EncodeToString(sum[:]),
		Size:   int64(len(data)),
	}
	return op, nil
}

// createCommit posts the NDJSON commit payload: a header line followed by one
// line per file ("file" for embedded content, "lfsFile" for LFS pointers).
func (u *Uploader) createCommit(ctx context.Context, repoID, branch string, operations []commitOperation, message string) error {
	var lines []string

	header, err := json.Marshal(map[string]interface{}{
		"key": "header",
		"value": map[string]string{
			"summary":     message,
			"description": "",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal commit header: %w", err)
	}
	lines = append(lines, string(header))

	for _, op := range operations {
		var line []byte
		if op.LFS != nil {
			line, err = json.Marshal(map[string]interface{}{
				"key": "lfsFile",
				"value": map[string]interface{}{
					"path": op.Path,
					"algo": "sha256",
					"oid":  op.LFS.SHA256,
					"size": op.LFS.Size,
				},
			})
		} else {
			line, err = json.Marshal(map[string]interface{}{
				"key": "file",
				"value": map[string]interface{}{
					"content":  op.Content,
					"path":     op.Path,
					"encoding": "base64",
				},
			})
		}
		if err != nil {
			return fmt.Errorf("failed to marshal commit line for %s: %w", op.Path, err)
		}
		lines = append(lines, string(line))
	}

	url := fmt.Sprintf("%s/api/datasets/%s/commit/%s", u.endpoint, repoID, branch)
	req, err := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(strings.Join(lines, "\n")))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+u.token)
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("commit failed with status %d: %s", resp.StatusCode, string(body))
	}

	u.logger.Info("Commit created", "branch", branch, "operations", len(operations))
	return nil
}
