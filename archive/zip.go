/**
 * Zip archive helpers for the OCR training-data toolkit
 *
 * Dataset archives are extracted into split-specific directories.
 * Extraction is idempotent: re-extracting over an existing directory
 * overwrites members in place and must not fail.
 */

package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ExtractZip extracts every member of the archive into destDir,
// creating destDir if needed. Members whose paths would escape destDir
// are rejected.
func ExtractZip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("failed to create extraction directory %s: %w", destDir, err)
	}

	for _, member := range reader.File {
		if err := extractMember(member, destDir); err != nil {
			return err
		}
	}
	return nil
}

func extractMember(member *zip.File, destDir string) error {
	target := filepath.Join(destDir, filepath.FromSlash(member.Name))
	// Guard against zip-slip paths
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("archive member %q escapes extraction directory", member.Name)
	}

	if member.FileInfo().IsDir() {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", target, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", target, err)
	}

	src, err := member.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive member %q: %w", member.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}

	_, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()
	if copyErr != nil {
		return fmt.Errorf("failed to extract %q: %w", member.Name, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to finalize %s: %w", target, closeErr)
	}
	return nil
}

// ReadZipMember returns the full contents of a single named member
// without extracting the archive.
func ReadZipMember(archivePath, memberName string) ([]byte, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer reader.Close()

	for _, member := range reader.File {
		if member.Name != memberName {
			continue
		}
		src, err := member.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open archive member %q: %w", memberName, err)
		}
		defer src.Close()
		data, err := io.ReadAll(src)
		if err != nil {
			return nil, fmt.Errorf("failed to read archive member %q: %w", memberName, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("archive %s has no member %q", archivePath, memberName)
}
