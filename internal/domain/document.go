package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// NewDocument builds a Document whose ID is the content hash of data.
// The format is inferred from the name's extension.
func NewDocument(name string, data []byte) Document {
	return Document{ID: ContentHash(data), Name: name, Format: FormatFromName(name), Data: data}
}

// ContentHash returns the hex SHA-256 of data.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FormatFromName maps .pdf to FormatPDF and anything else to FormatText.
func FormatFromName(name string) Format {
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		return FormatPDF
	}
	return FormatText
}
