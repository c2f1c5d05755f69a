package dataset

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxLineSize = 16 << 20

// ReadNDJSON parses newline-delimited JSON samples. Every non-blank line is
// an array of numeric features followed by the label, for example
// [5.1, 3.5, 1.4, 0.2, "setosa"]. Numeric and boolean labels are kept in
// their JSON text form. Records get no ID; stores assign one on insert.
func ReadNDJSON(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	var out []Record
	dims := 0
	for line := 1; scanner.Scan(); line++ {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		record, err := parseLine(raw)
		if err != nil {
			return nil, fmt.Errorf("dataset: line %d: %w", line, err)
		}
		if dims == 0 {
			dims = len(record.Features)
		} else if len(record.Features) != dims {
			return nil, fmt.Errorf("dataset: line %d: %d features, want %d", line, len(record.Features), dims)
		}
		out = append(out, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	return out, nil
}

func parseLine(raw []byte) (Record, error) {
	var values []jsoniter.RawMessage
	if err := json.Unmarshal(raw, &values); err != nil {
		return Record{}, err
	}
	if len(values) < 2 {
		return Record{}, fmt.Errorf("want at least one feature and a label, got %d values", len(values))
	}
	features := make([]float32, len(values)-1)
	for i, v := range values[:len(values)-1] {
		var f float64
		if err := json.Unmarshal(v, &f); err != nil || string(v) == "null" {
			return Record{}, fmt.Errorf("feature %d: %s is not a number", i, v)
		}
		features[i] = float32(f)
	}
	label, err := parseLabel(values[len(values)-1])
	if err != nil {
		return Record{}, err
	}
	return Record{Label: label, Features: features}, nil
}

func parseLabel(raw jsoniter.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b), nil
	}
	return "", fmt.Errorf("label %s must be a string, number or boolean", raw)
}
