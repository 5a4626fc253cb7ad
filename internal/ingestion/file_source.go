package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"trade-reconciler/internal/normalization"
)

// FileSource reads fixture pages from <dir>/<accountID>/*.json in lexical order.
// Each file holds {"fills": [...], "income": [...]}.
type FileSource struct {
	dir string
}

// NewFileSource creates a source rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

type filePage struct {
	Fills  []map[string]any `json:"fills"`
	Income []map[string]any `json:"income"`
}

// FetchPage returns the page at cursor, which is the file index.
func (s *FileSource) FetchPage(ctx context.Context, accountID, cursor string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files, err := filepath.Glob(filepath.Join(s.dir, accountID, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list fixture pages: %w", err)
	}
	sort.Strings(files)

	idx := 0
	if cursor != "" {
		if idx, err = strconv.Atoi(cursor); err != nil {
			return nil, fmt.Errorf("bad cursor %q: %w", cursor, err)
		}
	}
	if idx >= len(files) {
		return &Page{}, nil
	}

	data, err := os.ReadFile(files[idx])
	if err != nil {
		return nil, fmt.Errorf("read fixture page: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fp filePage
	if err := dec.Decode(&fp); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(files[idx]), err)
	}

	page := &Page{Records: make([]normalization.RawRecord, 0, len(fp.Fills)+len(fp.Income))}
	for _, f := range fp.Fills {
		page.Records = append(page.Records, normalization.RawRecord{Kind: normalization.KindFill, Payload: f})
	}
	for _, in := range fp.Income {
		page.Records = append(page.Records, normalization.RawRecord{Kind: normalization.KindIncome, Payload: in})
	}
	if idx+1 < len(files) {
		page.NextCursor = strconv.Itoa(idx + 1)
	}
	return page, nil
}

// Accounts lists the account directories under dir.
func (s *FileSource) Accounts() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read fixture dir: %w", err)
	}
	var accounts []string
	for _, e := range entries {
		if e.IsDir() {
			accounts = append(accounts, e.Name())
		}
	}
	sort.Strings(accounts)
	return accounts, nil
}
