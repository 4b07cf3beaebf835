package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/youssefsiam38/ctxoffload/types"
	"gopkg.in/yaml.v3"
)

// Transcript formats
const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// detectFormat picks the transcript format from an explicit flag or the
// file extension, defaulting to JSON
func detectFormat(flag, path string) (string, error) {
	switch strings.ToLower(flag) {
	case formatJSON:
		return formatJSON, nil
	case formatYAML, "yml":
		return formatYAML, nil
	case "":
	default:
		return "", fmt.Errorf("invalid format: %s (must be json or yaml)", flag)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML, nil
	default:
		return formatJSON, nil
	}
}

// readTranscript reads a transcript from path, or stdin when path is "" or "-"
func readTranscript(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	return data, nil
}

// decodeTranscript parses a list of messages. YAML documents are converted
// to JSON first so that messages decode through their JSON form.
func decodeTranscript(data []byte, format string) ([]types.Message, error) {
	if format == formatYAML {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid yaml transcript: %w", err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("invalid yaml transcript: %w", err)
		}
		data = converted
	}

	var messages []types.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("invalid transcript: %w", err)
	}
	return messages, nil
}

// encodeTranscript renders messages in format
func encodeTranscript(messages []types.Message, format string) ([]byte, error) {
	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode transcript: %w", err)
	}
	if format != formatYAML {
		return append(data, '\n'), nil
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to encode transcript: %w", err)
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transcript: %w", err)
	}
	return out, nil
}

// writeOutput writes data to path, or to w when path is "" or "-"
func writeOutput(path string, w io.Writer, data []byte) error {
	if path == "" || path == "-" {
		_, err := w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
