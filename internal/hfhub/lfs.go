package hfhub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// lfsObject identifies one file in a Git LFS batch request.
type lfsObject struct {
	OID  string `json:"oid"`
	Size int64  `json:"size"`
}

type lfsBatchRequest struct {
	Operation string      `json:"operation"`
	Transfers []string    `json:"transfers"`
	Objects   []lfsObject `json:"objects"`
	HashAlgo  string      `json:"hash_algo"`
}

type lfsBatchResponse struct {
	Objects []struct {
		OID     string `json:"oid"`
		Size    int64  `json:"size"`
		Actions *struct {
			Upload *struct {
				Href   string            `json:"href"`
				Header map[string]string `json:"header"`
			} `json:"upload"`
		} `json:"actions"`
	} `json:"objects"`
}

// uploadLFS runs the LFS batch negotiation and uploads every object the
// server does not already have. Transient failures are retried with
// exponential backoff.
func (u *Uploader) uploadLFS(ctx context.Context, repoID string, objects []lfsObject, localByOID map[string]string) error {
	u.logger.Info("Uploading LFS files", "count", len(objects))

	batch, err := u.lfsBatchWithRetry(ctx, repoID, objects)
	if err != nil {
		return fmt.Errorf("LFS batch negotiation failed: %w", err)
	}

	for _, obj := range batch.Objects {
		if obj.Actions == nil || obj.Actions.Upload == nil {
			// Server already has this object.
			u.logger.Debug("LFS object already present", "oid", obj.OID)
			continue
		}
		if _, multipart := obj.Actions.Upload.Header["chunk_size"]; multipart {
			return fmt.Errorf("file %s requires multipart LFS upload (size %d), which is not supported; split the dataset",
				localByOID[obj.OID], obj.Size)
		}

		localPath := localByOID[obj.OID]
		if err := u.putLFSWithRetry(ctx, obj.Actions.Upload.Href, obj.Actions.Upload.Header, localPath); err != nil {
			return fmt.Errorf("failed to upload %s: %w", localPath, err)
		}
	}
	return nil
}

// lfsBatch asks the batch endpoint for presigned upload URLs.
func (u *Uploader) lfsBatch(ctx context.Context, repoID string, objects []lfsObject) (*lfsBatchResponse, error) {
	payload, err := json.Marshal(lfsBatchRequest{
		Operation: "upload",
		Transfers: []string{"basic"},
		Objects:   objects,
		HashAlgo:  "sha256",
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/datasets/%s.git/info/lfs/objects/batch", u.endpoint, repoID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+u.token)
	req.Header.Set("Content-Type", "application/vnd.git-lfs+json")
	req.Header.Set("Accept", "application/vnd.git-lfs+json")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("LFS batch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var batch lfsBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("failed to decode LFS batch response: %w", err)
	}
	return &batch, nil
}

// putLFS PUTs the file body to the presigned URL.
func (u *Uploader) putLFS(ctx context.Context, href string, header map[string]string, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "PUT", href, file)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = info.Size()
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := u.lfsClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("LFS upload failed with status %d: %s", resp.StatusCode, string(body))
	}

	u.logger.Info("LFS file uploaded", "file", localPath, "size", info.Size())
	return nil
}

func (u *Uploader) lfsBatchWithRetry(ctx context.Context, repoID string, objects []lfsObject) (*lfsBatchResponse, error) {
	var lastErr error
	backoff := 2 * time.Second

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			u.logger.Warn("Retrying LFS batch", "attempt", attempt, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		batch, err := u.lfsBatch(ctx, repoID, objects)
		if err == nil {
			return batch, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("after %d attempts: %w", maxRetries+1, lastErr)
}

func (u *Uploader) putLFSWithRetry(ctx context.Context, href string, header map[string]string, localPath string) error {
	var lastErr error
	backoff := 2 * time.Second

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			u.logger.Warn("Retrying LFS upload", "file", localPath, "attempt", attempt, "backoff", backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err := u.putLFS(ctx, href, header, localPath)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("after %d attempts: %w", maxRetries+1, lastErr)
}
