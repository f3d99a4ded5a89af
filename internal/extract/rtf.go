package extract

import (
	"bytes"
	"fmt"

	"github.com/lu4p/cat/rtftxt"
)

// extractRTF decodes RTF control words and groups into plain text.
func extractRTF(content []byte) (string, error) {
	buf, err := rtftxt.Text(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("decode RTF: %w", err)
	}
	return buf.String(), nil
}
