package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	herald "github.com/herald/herald/sdk/go"
)

// Header names accepted for the fixed columns. Everything else becomes extra data.
var columnAliases = map[string]string{
	"first_name": "first_name",
	"firstname":  "first_name",
	"imie":       "first_name",
	"last_name":  "last_name",
	"lastname":   "last_name",
	"nazwisko":   "last_name",
	"email":      "email",
	"e-mail":     "email",
	"phone":      "phone",
	"telefon":    "phone",
}

// loadRows reads recipients from a .csv file with a header row or a .json array
func loadRows(path string) ([]herald.RecipientRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var rows []herald.RecipientRow
		if err := json.NewDecoder(f).Decode(&rows); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return rows, nil
	case ".csv":
		return parseCSV(f)
	default:
		return nil, fmt.Errorf("unsupported recipients file %q: use .csv or .json", path)
	}
}

func parseCSV(r io.Reader) ([]herald.RecipientRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("recipients file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
	}

	var rows []herald.RecipientRow
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(rows)+2, err)
		}

		var row herald.RecipientRow
		for i, value := range record {
			if i >= len(header) || header[i] == "" {
				continue
			}
			value = strings.TrimSpace(value)
			switch columnAliases[strings.ToLower(header[i])] {
			case "first_name":
				row.FirstName = value
			case "last_name":
				row.LastName = value
			case "email":
				row.Email = value
			case "phone":
				row.Phone = value
			default:
				if row.Extra == nil {
					row.Extra = make(map[string]string)
				}
				row.Extra[header[i]] = value
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
