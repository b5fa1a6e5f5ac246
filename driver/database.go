package driver

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ugorji/go/codec"

	"keywordpir/pir"
	"keywordpir/rpc"
)

type RowsFormat string

const (
	// CSV files hold one keyword,value record per line.
	CSVRows  RowsFormat = "csv"
	BincRows RowsFormat = "binc"
)

// FormatOf guesses the rows format from the file extension.
func FormatOf(path string) RowsFormat {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return CSVRows
	}
	return BincRows
}

func LoadRowsFile(path string, format RowsFormat) ([]pir.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if format == "" {
		format = FormatOf(path)
	}
	rows, err := ReadRows(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

func ReadRows(r io.Reader, format RowsFormat) ([]pir.Row, error) {
	switch format {
	case CSVRows:
		cr := csv.NewReader(r)
		cr.Comment = '#'
		cr.FieldsPerRecord = 2
		var rows []pir.Row
		for {
			rec, err := cr.Read()
			if err == io.EOF {
				return rows, nil
			}
			if err != nil {
				return nil, err
			}
			rows = append(rows, pir.Row{Keyword: []byte(rec[0]), Value: []byte(rec[1])})
		}
	case BincRows:
		var rows []pir.Row
		if err := codec.NewDecoder(r, rpc.CodecHandle()).Decode(&rows); err != nil {
			return nil, err
		}
		return rows, nil
	}
	return nil, fmt.Errorf("unknown rows format %q", format)
}

func WriteRows(w io.Writer, rows []pir.Row, format RowsFormat) error {
	switch format {
	case CSVRows:
		cw := csv.NewWriter(w)
		for _, r := range rows {
			if err := cw.Write([]string{string(r.Keyword), string(r.Value)}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	case BincRows:
		return codec.NewEncoder(w, rpc.CodecHandle()).Encode(rows)
	}
	return fmt.Errorf("unknown rows format %q", format)
}

func WriteRowsFile(path string, rows []pir.Row, format RowsFormat) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteRows(f, rows, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
