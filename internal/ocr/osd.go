package ocr

import (
	"bufio"
	"fmt"
	"strings"
)

// ParseScriptReport extracts the script label from a tesseract OSD report:
//
//	Page number: 0
//	Orientation in degrees: 0
//	Script: Meetei_Mayek
//	Script confidence: 2.41
//
// The first "Script" field wins.
func ParseScriptReport(report string) (ScriptLabel, error) {
	scanner := bufio.NewScanner(strings.NewReader(report))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok || strings.TrimSpace(key) != "Script" {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			return ScriptUnknown, fmt.Errorf("%w: empty Script field", ErrScriptDetection)
		}
		return ParseScriptLabel(value), nil
	}
	if err := scanner.Err(); err != nil {
		return ScriptUnknown, fmt.Errorf("%w: %v", ErrScriptDetection, err)
	}
	return ScriptUnknown, fmt.Errorf("%w: no Script field in report", ErrScriptDetection)
}
