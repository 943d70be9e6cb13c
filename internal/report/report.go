// Package report writes detail normalization reports as JSON, YAML or CSV.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/incentive-trips/backend/internal/domain"
)

// Format is a report encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a --format value. "yml" is accepted as YAML.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatCSV:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want json, yaml or csv)", s)
	}
}

// Extension returns the file extension for f, without the dot.
func (f Format) Extension() string {
	return string(f)
}

// csvHeader is the column order of CSV reports. Failure rows leave the
// change columns empty and fill error.
var csvHeader = []string{
	"trip_id", "version", "day", "item_index", "item_id", "item_title",
	"detail_index", "before", "after_type", "after_value", "error",
}

// Write encodes r to w in format f.
func Write(w io.Writer, f Format, r domain.NormalizationReport) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("report.Write: json: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("report.Write: yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("report.Write: yaml: %w", err)
		}
		return nil
	case FormatCSV:
		if err := writeCSV(w, r); err != nil {
			return fmt.Errorf("report.Write: csv: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("report.Write: unknown format %q", f)
	}
}

func writeCSV(w io.Writer, r domain.NormalizationReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, trip := range r.Trips {
		for _, c := range trip.Changes {
			row := []string{
				trip.TripID.String(),
				strconv.FormatInt(trip.Version, 10),
				strconv.Itoa(c.Day),
				strconv.Itoa(c.ItemIndex),
				c.ItemID.String(),
				c.ItemTitle,
				strconv.Itoa(c.DetailIndex),
				c.Before,
				c.After.Type,
				c.After.Value,
				"",
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	for _, f := range r.Failures {
		row := make([]string, len(csvHeader))
		row[0] = f.TripID.String()
		row[len(row)-1] = f.Error
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
