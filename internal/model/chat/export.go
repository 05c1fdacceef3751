package chat

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// ExportContentType is the media type of MarshalExport output.
const ExportContentType = "application/x-ndjson; charset=utf-8"

// MarshalExport encodes turns as JSON Lines, one {"role","content"} record per turn
// in store order.
func MarshalExport(turns []Turn) ([]byte, error) {
	var buf bytes.Buffer
	for i, turn := range turns {
		line, err := sonic.Marshal(turn)
		if err != nil {
			return nil, fmt.Errorf("marshal turn %d: %w", i, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// ParseExport decodes MarshalExport output. Blank lines are skipped.
func ParseExport(data []byte) ([]Turn, error) {
	lines := strings.Split(string(data), "\n")
	turns := make([]Turn, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var turn Turn
		if err := sonic.UnmarshalString(line, &turn); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if !turn.Role.Valid() {
			return nil, fmt.Errorf("line %d: unknown role %q", i+1, turn.Role)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}
