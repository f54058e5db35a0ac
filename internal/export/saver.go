package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/vmihailenco/msgpack/v5"
)

// Saver writes a batch of bars to a single file.
type Saver interface {
	Extension() string
	Save(bars []Bar, path string) error
}

// NewSaver returns the saver for format (parquet, json or msgpack).
func NewSaver(format string) (Saver, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "parquet":
		return ParquetSaver{}, nil
	case "json":
		return JSONSaver{}, nil
	case "msgpack":
		return MsgpackSaver{}, nil
	default:
		return nil, fmt.Errorf("export: unsupported format %q (parquet|json|msgpack)", format)
	}
}

// ParquetSaver writes bars as a Parquet file.
type ParquetSaver struct{}

func (ParquetSaver) Extension() string { return "parquet" }

func (ParquetSaver) Save(bars []Bar, path string) error {
	return parquet.WriteFile(path, bars)
}

// JSONSaver writes bars as an indented JSON array.
type JSONSaver struct{}

func (JSONSaver) Extension() string { return "json" }

func (JSONSaver) Save(bars []Bar, path string) error {
	return writeFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(bars)
	})
}

// MsgpackSaver writes bars as one msgpack array.
type MsgpackSaver struct{}

func (MsgpackSaver) Extension() string { return "msgpack" }

func (MsgpackSaver) Save(bars []Bar, path string) error {
	return writeFile(path, func(w io.Writer) error {
		return msgpack.NewEncoder(w).Encode(bars)
	})
}

// writeFile creates path and runs encode on it. A failed close is reported
// when encode succeeded, so a short write never reaches the rename.
func writeFile(path string, encode func(w io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return encode(f)
}
