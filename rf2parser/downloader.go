// Package rf2parser provides functionality for downloading and parsing RF2 release snapshot files
// into an in-memory terminology snapshot.
package rf2parser

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"

	"github.com/giygas/snomed-normalform/logging"
)

// Names under which downloaded release files are stored in the release directory
const (
	ConceptFileName      = "sct2_Concept_Snapshot_INT.txt"
	RelationshipFileName = "sct2_Relationship_Snapshot_INT.txt"
	DescriptionFileName  = "sct2_Description_Snapshot-en_INT.txt"
)

var releaseFiles = []string{ConceptFileName, RelationshipFileName, DescriptionFileName}

func (l *Loader) downloadFile(ctx context.Context, name string) error {
	cleanPath := filepath.Join(l.dir, filepath.Base(name))
	url := strings.TrimSuffix(l.url, "/") + "/" + name

	backoff := retry.WithMaxRetries(l.retries, retry.NewExponential(l.backoff))

	var body []byte
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("failed to build request for %s: %w", url, err)
		}

		response, err := l.client.Do(req)
		if err != nil {
			logging.Warn("Release download failed, retrying", "url", url, "error", err)
			return retry.RetryableError(fmt.Errorf("failed to download %s: %w", url, err))
		}
		defer func() {
			if err := response.Body.Close(); err != nil {
				logging.Warn("Failed to close response body", "error", err)
			}
		}()

		if response.StatusCode >= http.StatusInternalServerError || response.StatusCode == http.StatusTooManyRequests {
			logging.Warn("Release download failed, retrying", "url", url, "status", response.StatusCode)
			return retry.RetryableError(fmt.Errorf("failed to download %s: status %d", url, response.StatusCode))
		}
		if response.StatusCode != http.StatusOK {
			return fmt.Errorf("failed to download %s: status %d", url, response.StatusCode)
		}

		body, err = io.ReadAll(response.Body)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("failed to read response body: %w", err))
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Release files are UTF-8, older national extensions ship ISO-8859-1
	var reader io.Reader
	if utf8.Valid(body) {
		reader = bytes.NewReader(body)
	} else {
		reader = charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(body))
	}

	outFile, err := os.Create(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", cleanPath, err)
	}
	defer func() {
		if err := outFile.Close(); err != nil {
			logging.Warn("Failed to close output file", "error", err)
		}
	}()

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0), maxLineSize)

	writer := bufio.NewWriter(outFile)
	for scanner.Scan() {
		// #nosec G705 -- writing to file, not HTML output
		if _, err := io.WriteString(writer, scanner.Text()+"\n"); err != nil {
			return fmt.Errorf("failed to write to file %s: %w", cleanPath, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error in %s: %w", name, err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to write to file %s: %w", cleanPath, err)
	}

	logging.Debug(fmt.Sprintf("%s downloaded without errors", name))
	return nil
}

// downloadAll fetches every release file concurrently into the release directory
func (l *Loader) downloadAll(ctx context.Context) error {
	if err := os.MkdirAll(l.dir, 0750); err != nil {
		return fmt.Errorf("failed to create release directory: %w", err)
	}

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range releaseFiles {
		g.Go(func() error {
			return l.downloadFile(ctx, name)
		})
	}
	if err := g.Wait(); err != nil {
		logging.Error("Release download failed", "error", err)
		return fmt.Errorf("download errors: %w", err)
	}

	logging.Info("Release files downloaded", "url", l.url, "duration", time.Since(start))
	return nil
}
