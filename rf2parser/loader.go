package rf2parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/giygas/snomed-normalform/interfaces"
	"github.com/giygas/snomed-normalform/logging"
	"github.com/giygas/snomed-normalform/terminology"
)

// ErrReleaseFileNotFound is returned when the release directory lacks one of the snapshot files
var ErrReleaseFileNotFound = errors.New("release file not found")

// Compile-time check to ensure Loader implements ReleaseLoader
var _ interfaces.ReleaseLoader = (*Loader)(nil)

// Loader reads an RF2 snapshot from a directory, optionally downloading it first
type Loader struct {
	dir       string
	url       string
	retries   uint64
	backoff   time.Duration
	cacheSize int
	client    *http.Client
}

// Option configures a Loader
type Option func(*Loader)

// WithDownload makes the loader fetch the release files from url before parsing
func WithDownload(url string, retries int) Option {
	return func(l *Loader) {
		l.url = url
		if retries > 0 {
			l.retries = uint64(retries)
		}
	}
}

// WithAncestorCacheSize sets the ancestor cache size of built snapshots
func WithAncestorCacheSize(size int) Option {
	return func(l *Loader) {
		l.cacheSize = size
	}
}

// WithHTTPClient replaces the download client
func WithHTTPClient(client *http.Client) Option {
	return func(l *Loader) {
		l.client = client
	}
}

// WithBackoff sets the base delay of the exponential download retry
func WithBackoff(base time.Duration) Option {
	return func(l *Loader) {
		l.backoff = base
	}
}

// NewLoader creates a loader for the release directory dir
func NewLoader(dir string, opts ...Option) *Loader {
	l := &Loader{
		dir:       dir,
		retries:   3,
		backoff:   time.Second,
		cacheSize: terminology.DefaultAncestorCacheSize,
		client:    &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadRelease implements the ReleaseLoader interface
func (l *Loader) LoadRelease() (interfaces.Terminology, error) {
	return l.Load(context.Background())
}

// Load downloads the release when a URL is configured, then parses the three
// snapshot files concurrently and builds the terminology snapshot.
func (l *Loader) Load(ctx context.Context) (*terminology.Snapshot, error) {
	start := time.Now()

	if l.url != "" {
		if err := l.downloadAll(ctx); err != nil {
			return nil, err
		}
	}

	conceptPath, err := findReleaseFile(l.dir, "*Concept_Snapshot*.txt")
	if err != nil {
		return nil, err
	}
	relationshipPath, err := findReleaseFile(l.dir, "*Relationship_Snapshot*.txt", "Stated", "Concrete")
	if err != nil {
		return nil, err
	}
	descriptionPath, err := findReleaseFile(l.dir, "*Description_Snapshot*.txt")
	if err != nil {
		return nil, err
	}

	var (
		concepts      []terminology.ConceptRow
		relationships []terminology.RelationshipRow
		descriptions  []terminology.DescriptionRow
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		return parseFile(conceptPath, func(r io.Reader, name string) (*parseStats, error) {
			var stats *parseStats
			var err error
			concepts, stats, err = parseConcepts(r, name)
			return stats, err
		})
	})
	g.Go(func() error {
		return parseFile(relationshipPath, func(r io.Reader, name string) (*parseStats, error) {
			var stats *parseStats
			var err error
			relationships, stats, err = parseRelationships(r, name)
			return stats, err
		})
	})
	g.Go(func() error {
		return parseFile(descriptionPath, func(r io.Reader, name string) (*parseStats, error) {
			var stats *parseStats
			var err error
			descriptions, stats, err = parseDescriptions(r, name)
			return stats, err
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(concepts) == 0 {
		return nil, fmt.Errorf("no active concepts in %s", conceptPath)
	}

	builder := terminology.NewBuilder(l.cacheSize)
	for _, c := range concepts {
		builder.AddConcept(c)
	}
	for _, d := range descriptions {
		builder.AddDescription(d)
	}
	for _, r := range relationships {
		builder.AddRelationship(r)
	}

	snapshot, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build terminology snapshot: %w", err)
	}

	logging.Info("Release loaded",
		"concepts", snapshot.ConceptCount(),
		"relationships", snapshot.RelationshipCount(),
		"descriptions", len(descriptions),
		"duration", time.Since(start))

	return snapshot, nil
}

func parseFile(path string, parse func(r io.Reader, name string) (*parseStats, error)) error {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("Failed to close release file", "file", path, "error", err)
		}
	}()

	stats, err := parse(file, filepath.Base(path))
	if err != nil {
		return err
	}
	stats.log()
	return nil
}

// findReleaseFile returns the first file in dir matching pattern whose name contains none of excluded
func findReleaseFile(dir, pattern string, excluded ...string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", fmt.Errorf("invalid release file pattern %s: %w", pattern, err)
	}
	slices.Sort(matches)

	for _, m := range matches {
		name := filepath.Base(m)
		if slices.ContainsFunc(excluded, func(ex string) bool { return strings.Contains(name, ex) }) {
			continue
		}
		return m, nil
	}
	return "", fmt.Errorf("%w: %s in %s", ErrReleaseFileNotFound, pattern, dir)
}
