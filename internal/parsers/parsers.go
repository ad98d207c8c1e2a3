// package parsers decodes CSV/JSON input files into validated input records.
package parsers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"discosync/internal/models"
	"discosync/internal/shared"
)

// formatSynonyms maps loose user-supplied format names to canonical ones.
var formatSynonyms = map[string]string{
	"lp":           "Vinyl",
	"record":       "Vinyl",
	`12"`:          "Vinyl",
	"12 inch":      "Vinyl",
	"vinyl":        "Vinyl",
	"compact disc": "CD",
	"cd":           "CD",
	"tape":         "Cassette",
	"mc":           "Cassette",
	"cassette":     "Cassette",
}

const (
	minYear = 1900
	maxYear = 2030
)

// RowError describes a single invalid input row.
type RowError struct {
	Line    int
	Message string
}

// NormalizeFormat maps format synonyms to canonical names (Vinyl, CD, Cassette).
// Unknown formats are returned trimmed but otherwise untouched.
func NormalizeFormat(format string) string {
	trimmed := strings.TrimSpace(format)
	if trimmed == "" {
		return ""
	}
	if canonical, ok := formatSynonyms[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return trimmed
}

var disambiguation = regexp.MustCompile(`\s*\(\d+\)$`)

// JoinArtists assembles a display name from the API's artist credit list,
// stripping disambiguation suffixes like "John Williams (4)".
func JoinArtists(artists []ArtistCredit) string {
	var b strings.Builder
	for i, a := range artists {
		name := a.ANV
		if name == "" {
			name = a.Name
		}
		b.WriteString(disambiguation.ReplaceAllString(name, ""))
		if i < len(artists)-1 {
			join := strings.TrimSpace(a.Join)
			if join != "" && join != "," {
				b.WriteString(" " + join + " ")
			} else {
				b.WriteString(", ")
			}
		}
	}
	return b.String()
}

// ArtistCredit mirrors one entry of the API's artists array. ANV is the
// artist-name variation used on the release when present.
type ArtistCredit struct {
	Name string `json:"name"`
	ANV  string `json:"anv,omitempty"`
	Join string `json:"join,omitempty"`
}

// ParseFile decodes an input file into records, auto-detecting CSV or JSON by
// extension. More than half the rows being invalid aborts the parse; fewer
// invalid rows are returned as warnings alongside the valid records.
func ParseFile(path string) ([]models.InputRecord, []RowError, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ParseCSV(path)
	case ".json":
		return ParseJSON(path)
	default:
		return nil, nil, fmt.Errorf("%w: unsupported file format %q, use .csv or .json", shared.ErrParse, filepath.Ext(path))
	}
}

// ParseCSV decodes a CSV input file. The header row is required and must
// include artist and album columns (case-insensitive).
func ParseCSV(path string) ([]models.InputRecord, []RowError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", shared.ErrParse, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: CSV file is empty or has no header row", shared.ErrParse)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"artist", "album"} {
		if _, ok := columns[required]; !ok {
			return nil, nil, fmt.Errorf("%w: CSV missing required column %q", shared.ErrParse, required)
		}
	}

	var records []models.InputRecord
	var rowErrors []RowError

	line := 1
	for {
		line++
		row, err := reader.Read()
		if err != nil {
			break
		}

		field := func(name string) string {
			i, ok := columns[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		record, rowErr := validateRow(field("artist"), field("album"), field("format"), field("year"), field("notes"), line)
		if rowErr != nil {
			rowErrors = append(rowErrors, *rowErr)
			continue
		}
		records = append(records, record)
	}

	return finishParse(records, rowErrors)
}

// jsonRecord tolerates both string and numeric year values.
type jsonRecord struct {
	Artist string          `json:"artist"`
	Album  string          `json:"album"`
	Format string          `json:"format"`
	Year   json.RawMessage `json:"year"`
	Notes  string          `json:"notes"`
}

// ParseJSON decodes a JSON input file holding an array of record objects.
func ParseJSON(path string) ([]models.InputRecord, []RowError, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", shared.ErrParse, err)
	}

	var rows []jsonRecord
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, nil, fmt.Errorf("%w: JSON input must be an array of objects: %v", shared.ErrParse, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%w: JSON file contains no records", shared.ErrParse)
	}

	var records []models.InputRecord
	var rowErrors []RowError

	for i, row := range rows {
		year := strings.Trim(string(row.Year), `"`)
		if year == "null" {
			year = ""
		}
		record, rowErr := validateRow(row.Artist, row.Album, row.Format, year, row.Notes, i+1)
		if rowErr != nil {
			rowErrors = append(rowErrors, *rowErr)
			continue
		}
		records = append(records, record)
	}

	return finishParse(records, rowErrors)
}

func validateRow(artist, album, format, year, notes string, line int) (models.InputRecord, *RowError) {
	artist = strings.TrimSpace(artist)
	album = strings.TrimSpace(album)

	if artist == "" {
		return models.InputRecord{}, &RowError{Line: line, Message: "missing required field: artist"}
	}
	if album == "" {
		return models.InputRecord{}, &RowError{Line: line, Message: "missing required field: album"}
	}

	parsedYear := 0
	if year = strings.TrimSpace(year); year != "" {
		n, err := strconv.Atoi(year)
		if err != nil {
			return models.InputRecord{}, &RowError{Line: line, Message: fmt.Sprintf("invalid year: %q", year)}
		}
		if n < minYear || n > maxYear {
			return models.InputRecord{}, &RowError{Line: line, Message: fmt.Sprintf("year out of range: %d", n)}
		}
		parsedYear = n
	}

	return models.InputRecord{
		Artist: artist,
		Album:  album,
		Format: NormalizeFormat(format),
		Year:   parsedYear,
		Notes:  strings.TrimSpace(notes),
		Line:   line,
	}, nil
}

// finishParse applies the too-many-invalid-rows rule shared by both decoders.
func finishParse(records []models.InputRecord, rowErrors []RowError) ([]models.InputRecord, []RowError, error) {
	total := len(records) + len(rowErrors)
	if total == 0 {
		return nil, nil, fmt.Errorf("%w: file contains no data rows", shared.ErrParse)
	}
	if len(rowErrors)*2 > total {
		return nil, rowErrors, fmt.Errorf("%w: too many invalid rows (%d/%d)", shared.ErrParse, len(rowErrors), total)
	}
	return records, rowErrors, nil
}
