// Package corpus loads the sample files named by a file list and runs the
// feature extractor over them with a bounded pool of workers.
package corpus

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/extract"
	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/features"
)

// Corpus is the ordered file list of one split together with every
// observation extracted from its files.
type Corpus struct {
	Name         string
	FileIDs      []string
	Observations []features.Observation
}

// Loader reads <dir>/<fileID><ext> for every file id.
type Loader struct {
	dirs      map[extract.Source]string
	extractor *extract.Extractor
	workers   int
	logger    *slog.Logger
}

// NewLoader creates a Loader. asmDir and bytesDir may be empty when no rule
// reads from them.
func NewLoader(extractor *extract.Extractor, asmDir, bytesDir string, workers int) (*Loader, error) {
	if workers <= 0 {
		workers = 1
	}
	dirs := map[extract.Source]string{
		extract.SourceAsm:   asmDir,
		extract.SourceBytes: bytesDir,
	}
	for _, src := range extractor.Sources() {
		if dirs[src] == "" {
			return nil, fmt.Errorf("no directory configured for %s files", src)
		}
	}
	return &Loader{
		dirs:      dirs,
		extractor: extractor,
		workers:   workers,
		logger:    slog.Default().With("component", "corpus-loader"),
	}, nil
}

// Load extracts observations from every listed file. The observations of
// each file stay contiguous and follow the order of fileIDs. Load fails on
// the first unreadable file.
func (l *Loader) Load(ctx context.Context, name string, fileIDs []string) (*Corpus, error) {
	perFile := make([][]features.Observation, len(fileIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, id := range fileIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			obs, err := l.loadFile(id)
			if err != nil {
				return err
			}
			perFile[i] = obs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading %s corpus: %w", name, err)
	}

	total := 0
	for _, obs := range perFile {
		total += len(obs)
	}
	all := make([]features.Observation, 0, total)
	for _, obs := range perFile {
		all = append(all, obs...)
	}
	l.logger.Info("corpus loaded",
		"corpus", name,
		"files", len(fileIDs),
		"observations", len(all),
	)
	return &Corpus{Name: name, FileIDs: fileIDs, Observations: all}, nil
}

func (l *Loader) loadFile(fileID string) ([]features.Observation, error) {
	if fileID == "" {
		return nil, fmt.Errorf("empty file id in file list")
	}
	var obs []features.Observation
	for _, src := range l.extractor.Sources() {
		path := filepath.Join(l.dirs[src], fileID+string(src))
		text, err := readJoined(path)
		if err != nil {
			return nil, fmt.Errorf("file %s: %w", fileID, err)
		}
		obs = append(obs, l.extractor.Extract(fileID, src, text)...)
	}
	l.logger.Debug("file extracted", "file_id", fileID, "observations", len(obs))
	return obs, nil
}

// readJoined returns the lines of path, each followed by a single space, so
// patterns that need surrounding whitespace also match at line boundaries.
func readJoined(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var sb strings.Builder
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		sb.WriteString(scanner.Text())
		sb.WriteByte(' ')
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return sb.String(), nil
}
