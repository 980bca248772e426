// Package validation checks the file arguments given to the command line:
// path sanity, size limits and whether a file's content matches the kind of
// file a command expects.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

// Limits for files read into memory (CWE-400).
const (
	// MaxFileSize is the largest input file accepted (64 MB).
	MaxFileSize = 64 << 20
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// Common validation errors.
var (
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrFileTooLarge     = errors.New("file too large")
	ErrWrongFileType    = errors.New("unexpected file type")
)

// ValidatePath rejects empty paths, overly long paths and paths containing
// control characters.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// FileType is the kind of file detected from its first bytes.
type FileType string

const (
	// FileTypeSnapshot is an xz-compressed document snapshot.
	FileTypeSnapshot FileType = "snapshot"
	// FileTypeSQLite is a bibliography database.
	FileTypeSQLite FileType = "sqlite"
	// FileTypeXML is a document to import.
	FileTypeXML FileType = "xml"
	// FileTypeText is any other text, such as YAML.
	FileTypeText FileType = "text"
	// FileTypeUnknown is binary content of no known kind.
	FileTypeUnknown FileType = "unknown"
)

var magicBytes = []struct {
	fileType FileType
	magic    []byte
}{
	{FileTypeSnapshot, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{FileTypeSQLite, []byte("SQLite format 3\x00")},
}

// DetectFileType reads the start of r and classifies it.
func DetectFileType(r io.Reader) (FileType, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return FileTypeUnknown, fmt.Errorf("read header: %w", err)
	}
	return detect(buf[:n]), nil
}

func detect(buf []byte) FileType {
	for _, m := range magicBytes {
		if bytes.HasPrefix(buf, m.magic) {
			return m.fileType
		}
	}
	if !isLikelyText(buf) {
		return FileTypeUnknown
	}
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(buf, []byte("\xef\xbb\xbf")), " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("<")) {
		return FileTypeXML
	}
	return FileTypeText
}

// isLikelyText reports whether buf has no NUL bytes and mostly printable
// characters.
func isLikelyText(buf []byte) bool {
	if len(buf) == 0 {
		return true
	}
	if bytes.IndexByte(buf, 0) >= 0 {
		return false
	}
	printable := 0
	for _, b := range buf {
		if b >= 32 || b == '\n' || b == '\r' || b == '\t' || b >= 128 {
			printable++
		}
	}
	return printable*100/len(buf) >= 95
}

// CheckFile validates path, requires the file to exist within MaxFileSize
// and, when want is not empty, to be of one of the given types.
func CheckFile(path string, want ...FileType) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() > MaxFileSize {
		return fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, path, info.Size())
	}
	if len(want) == 0 {
		return nil
	}
	got, err := DetectFileType(f)
	if err != nil {
		return err
	}
	for _, w := range want {
		if got == w {
			return nil
		}
	}
	return fmt.Errorf("%w: %s looks like %s", ErrWrongFileType, path, got)
}
