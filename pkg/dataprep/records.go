// Package dataprep turns raw marketing records into a clean daily
// TimeSeriesFrame ready for model training.
package dataprep

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
)

// ParseRecords decodes a raw dataset into row records. CSV and JSON array
// documents are supported; the key picks the decoder by extension, with a
// content sniff as fallback.
func ParseRecords(key string, data []byte) ([]map[string]any, error) {
	switch {
	case strings.HasSuffix(key, ".json"):
		return parseJSONRecords(data)
	case strings.HasSuffix(key, ".csv"):
		return parseCSVRecords(data)
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return parseJSONRecords(data)
	}
	return parseCSVRecords(data)
}

func parseJSONRecords(data []byte) ([]map[string]any, error) {
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse JSON dataset: %w", err)
	}
	return rows, nil
}

func parseCSVRecords(data []byte) ([]map[string]any, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV dataset: %w", err)
	}
	if len(all) < 1 {
		return nil, fmt.Errorf("empty CSV dataset")
	}
	header := all[0]
	rows := make([]map[string]any, 0, len(all)-1)
	for _, record := range all[1:] {
		row := make(map[string]any, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
