package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ragspan/internal/domain"
)

var supportedExt = map[string]struct{}{".pdf": {}, ".txt": {}, ".md": {}}

// LoadDocuments expands globs and reads every supported file (.pdf, .txt, .md).
// Unsupported files are skipped; finding nothing is an error.
func LoadDocuments(paths []string) ([]domain.Document, error) {
	var documents []domain.Document
	for _, p := range paths {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			if _, ok := supportedExt[strings.ToLower(filepath.Ext(m))]; !ok {
				continue
			}
			data, err := os.ReadFile(m)
			if err != nil {
				return nil, err
			}
			documents = append(documents, domain.NewDocument(filepath.Base(m), data))
		}
	}
	if len(documents) == 0 {
		return nil, fmt.Errorf("%w: no .pdf, .txt or .md documents found", domain.ErrInvalidArgument)
	}
	return documents, nil
}
