// Package batch reads listing/folder pairs from CSV files.
package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Row is one listing to grab, with the 1-based line it came from.
type Row struct {
	Line   int
	URL    string
	Folder string
}

var (
	urlHeaders    = []string{"link", "url", "anuncio", "anúncio", "link do anuncio", "link do anúncio"}
	folderHeaders = []string{"pasta", "folder", "nome da pasta", "destino"}
)

// Reader parses batch files.
type Reader struct {
	Comma rune
	log   *zap.Logger
}

// NewReader returns a Reader splitting fields on comma.
func NewReader(comma rune, log *zap.Logger) *Reader {
	if comma == 0 {
		comma = ','
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reader{Comma: comma, log: log}
}

// ReadFile parses the batch file at path.
func (r *Reader) ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch file: %w", err)
	}
	defer f.Close()
	return r.Read(f)
}

// Read parses CSV records from in. A first record naming the url and
// folder columns is treated as a header; otherwise the first two columns
// are used. Records missing either field are skipped.
func (r *Reader) Read(in io.Reader) ([]Row, error) {
	cr := csv.NewReader(in)
	cr.Comma = r.Comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	urlCol, folderCol := 0, 1
	var rows []Row
	first := true

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read batch file: %w", err)
		}
		line, _ := cr.FieldPos(0)

		if first {
			first = false
			if u, f, ok := headerColumns(rec); ok {
				urlCol, folderCol = u, f
				continue
			}
		}

		if isBlank(rec) {
			continue
		}

		row := Row{Line: line, URL: field(rec, urlCol), Folder: field(rec, folderCol)}
		if row.URL == "" || row.Folder == "" {
			r.log.Warn("skipping incomplete batch row", zap.Int("line", line))
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func headerColumns(rec []string) (urlCol, folderCol int, ok bool) {
	urlCol, folderCol = -1, -1
	for i, name := range rec {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF")))
		switch {
		case urlCol < 0 && contains(urlHeaders, name):
			urlCol = i
		case folderCol < 0 && contains(folderHeaders, name):
			folderCol = i
		}
	}
	return urlCol, folderCol, urlCol >= 0 && folderCol >= 0
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
