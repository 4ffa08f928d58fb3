// Package loader parses raw tabular files into immutable datasets.
package loader

import (
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/quillhq/quill/pkg/errors"
	"github.com/quillhq/quill/pkg/models"
)

// Loader parses CSV and XLSX content into datasets. A malformed row is
// skipped and counted; column types are inferred over the surviving rows.
type Loader struct {
	maxRows int
	logger  zerolog.Logger
}

// New creates a loader. maxRows caps the rows accepted from a single file;
// zero means no cap.
func New(maxRows int, logger zerolog.Logger) *Loader {
	return &Loader{maxRows: maxRows, logger: logger}
}

// Load parses one file into a dataset named after the file. The format is
// chosen by the file extension; unknown extensions fail as parse errors.
func (l *Loader) Load(fileName string, r io.Reader) (*models.Dataset, error) {
	name := DatasetName(fileName)

	var (
		header  []string
		raw     [][]string
		skipped int
		err     error
	)

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		header, raw, skipped, err = l.readCSV(r)
	case ".xlsx":
		header, raw, skipped, err = l.readXLSX(r)
	default:
		return nil, errors.Newf(errors.CodeParseFailed, "unsupported file format: %s", fileName)
	}
	if err != nil {
		return nil, err
	}
	if len(header) == 0 {
		return nil, errors.Newf(errors.CodeParseFailed, "file %s has no header row", fileName)
	}

	columns, rows := buildTable(header, raw)

	if skipped > 0 {
		l.logger.Warn().
			Str("dataset", name).
			Int("skipped_rows", skipped).
			Msg("Skipped malformed rows during load")
	}

	return &models.Dataset{
		Name:        name,
		Columns:     columns,
		Rows:        rows,
		LoadedAt:    time.Now().UTC(),
		SkippedRows: skipped,
	}, nil
}

// DatasetName derives the dataset name from a source file name.
func DatasetName(fileName string) string {
	base := filepath.Base(fileName)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

// readCSV reads all records, skipping rows whose field count does not match
// the header.
func (l *Loader) readCSV(r io.Reader) (header []string, rows [][]string, skipped int, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err = reader.Read()
	if err != nil {
		return nil, nil, 0, errors.Wrap(err, errors.CodeParseFailed, "failed to read CSV header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	for {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			skipped++
			continue
		}
		if len(record) != len(header) {
			skipped++
			continue
		}
		rows = append(rows, record)
		if l.maxRows > 0 && len(rows) > l.maxRows {
			return nil, nil, 0, errors.Newf(errors.CodeParseFailed, "file exceeds row cap of %d", l.maxRows)
		}
	}
	return header, rows, skipped, nil
}

// readXLSX reads the first sheet of a workbook. Short rows are padded with
// empty cells; rows longer than the header are skipped.
func (l *Loader) readXLSX(r io.Reader) (header []string, rows [][]string, skipped int, err error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, 0, errors.Wrap(err, errors.CodeParseFailed, "failed to open workbook")
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, 0, errors.New(errors.CodeParseFailed, "workbook has no sheets")
	}

	all, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, nil, 0, errors.Wrapf(err, errors.CodeParseFailed, "failed to read sheet %s", sheets[0])
	}
	if len(all) == 0 {
		return nil, nil, 0, errors.New(errors.CodeParseFailed, "sheet is empty")
	}

	header = all[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	for _, record := range all[1:] {
		if len(record) > len(header) {
			skipped++
			continue
		}
		for len(record) < len(header) {
			record = append(record, "")
		}
		rows = append(rows, record)
		if l.maxRows > 0 && len(rows) > l.maxRows {
			return nil, nil, 0, errors.Newf(errors.CodeParseFailed, "file exceeds row cap of %d", l.maxRows)
		}
	}
	return header, rows, skipped, nil
}
