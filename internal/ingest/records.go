package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// recordListKeys are the conventional property names under which an object
// root may expose its record list.
var recordListKeys = []string{"data", "records", "rows", "events", "logins", "items", "results"}

// parseRecords ingests structured JSON: either a root list of records, or an
// object carrying such a list under one of the conventional keys. The header
// set comes from the first record's keys; every value is coerced to a string
// before normalization.
func parseRecords(data []byte) (*Dataset, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var root interface{}
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("decoding structured input: %w", err)
	}

	list, err := recordList(root)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.New("structured input contains no records")
	}

	first, ok := list[0].(map[string]interface{})
	if !ok {
		return nil, errors.New("structured input records must be key-value objects")
	}
	headers := make([]string, 0, len(first))
	for k := range first {
		headers = append(headers, k)
	}
	sort.Strings(headers)

	rows := make([]map[string]string, 0, len(list))
	for _, item := range list {
		rec, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		row := make(map[string]string, len(headers))
		for _, h := range headers {
			row[h] = coerceString(rec[h])
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, errors.New("structured input contains no usable records")
	}
	return buildDataset(headers, rows)
}

func recordList(root interface{}) ([]interface{}, error) {
	if list, ok := root.([]interface{}); ok {
		return list, nil
	}
	if obj, ok := root.(map[string]interface{}); ok {
		for _, key := range recordListKeys {
			if list, ok := obj[key].([]interface{}); ok {
				return list, nil
			}
		}
	}
	return nil, fmt.Errorf("structured root is not a record list and carries none under %s",
		strings.Join(recordListKeys, "/"))
}

func coerceString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", t)
	}
}
