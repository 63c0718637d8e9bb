/**
 * Remote source registry for dataset artifacts
 *
 * Every remote file the assemblers touch (archives, ground-truth files,
 * the per-image base URL) is listed here with its pinned SHA-256 digest.
 * Deployments behind mirrors can override any entry with a YAML manifest
 * loaded via LoadSourceManifest; tests point the manifest at local HTTP
 * servers the same way.
 */

package datasets

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Source identifies one remote artifact and its pinned digest
type Source struct {
	URL    string `yaml:"url"`
	SHA256 string `yaml:"sha256"`
}

// SourceManifest lists every remote artifact the assemblers fetch
type SourceManifest struct {
	CocoTextLabels    Source `yaml:"cocoTextLabels"`
	CocoImageBaseURL  string `yaml:"cocoImageBaseUrl"`
	BornDigitalTrain  Source `yaml:"bornDigitalTrain"`
	BornDigitalTest   Source `yaml:"bornDigitalTest"`
	BornDigitalTestGT Source `yaml:"bornDigitalTestGt"`
}

// DefaultSources returns the canonical upstream locations and digests
func DefaultSources() *SourceManifest {
	return &SourceManifest{
		CocoTextLabels: Source{
			URL:    "https://github.com/bgshih/cocotext/releases/download/dl/cocotext.v2.zip",
			SHA256: "1444893ce7dbcd8419b2ec9be6beb0dba9cf8a43bf36cab4293d5ba6cecb7fb1",
		},
		CocoImageBaseURL: "http://images.cocodataset.org/train2014",
		BornDigitalTrain: Source{
			URL:    "https://storage.googleapis.com/keras-ocr/borndigital/Challenge1_Training_Task3_Images_GT.zip",
			SHA256: "8ede0639f5a8031d584afd98cee893d1c5275d7f17863afc2cba24b13c932b07",
		},
		BornDigitalTest: Source{
			URL:    "https://storage.googleapis.com/keras-ocr/borndigital/Challenge1_Test_Task3_Images.zip",
			SHA256: "8f781b0140fd0bac3750530f0924bce5db3341fd314a2fcbe9e0b6ca409a77f0",
		},
		BornDigitalTestGT: Source{
			URL:    "https://storage.googleapis.com/keras-ocr/borndigital/Challenge1_Test_Task3_GT.txt",
			SHA256: "fce7f1228b7c4c26a59f13f562085148acf063d6690ce51afc395e0a1aabf8be",
		},
	}
}

// LoadSourceManifest reads a YAML manifest from disk. Entries left
// empty in the file fall back to the defaults.
func LoadSourceManifest(path string) (*SourceManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source manifest %s: %w", path, err)
	}

	manifest := DefaultSources()
	if err := yaml.Unmarshal(data, manifest); err != nil {
		return nil, fmt.Errorf("failed to parse source manifest %s: %w", path, err)
	}
	return manifest, nil
}
