package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"pricesync/internal/config"
	"pricesync/pkg/market"
	"pricesync/pkg/syncjob"
)

// Exporter writes committed bars to {dir}/{SYMBOL}/{from}_{to}.{ext}.
type Exporter struct {
	dir   string
	saver Saver
}

var _ syncjob.Exporter = (*Exporter)(nil)

// New builds an Exporter. ok is false when export is disabled.
func New(c config.ExportConf) (exp *Exporter, ok bool, err error) {
	if strings.TrimSpace(c.Dir) == "" {
		return nil, false, nil
	}
	saver, err := NewSaver(c.Format)
	if err != nil {
		return nil, false, err
	}
	return &Exporter{dir: c.Dir, saver: saver}, true, nil
}

// Path returns the file an export of symbol over [from, to] is written to.
func (e *Exporter) Path(symbol string, from, to time.Time) string {
	name := fmt.Sprintf("%s_%s.%s", market.FormatDay(from), market.FormatDay(to), e.saver.Extension())
	return filepath.Join(e.dir, strings.ToUpper(symbol), name)
}

// Export implements syncjob.Exporter. The file is written under a temporary
// name and renamed into place.
func (e *Exporter) Export(ctx context.Context, symbol string, from, to time.Time, points []market.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	path := e.Path(symbol, from, to)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: mkdir %s: %w", filepath.Dir(path), err)
	}
	tmp := path + ".tmp"
	if err := e.saver.Save(FromPoints(points), tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("export: rename %s: %w", path, err)
	}
	logx.WithContext(ctx).Infof("export: symbol=%s rows=%d path=%s", symbol, len(points), path)
	return nil
}

// Reexport reads stored bars for each symbol over [from, to] and exports
// them. It returns the files written.
func (e *Exporter) Reexport(ctx context.Context, reader market.HistoryReader, symbols []string, from, to time.Time) ([]string, error) {
	var written []string
	for _, symbol := range market.NormalizeSymbols(symbols) {
		points, err := reader.PricesBetween(ctx, symbol, from, to)
		if err != nil {
			return written, fmt.Errorf("export: read %s: %w", symbol, err)
		}
		if len(points) == 0 {
			logx.WithContext(ctx).Infof("export: symbol=%s no stored rows in range", symbol)
			continue
		}
		first, last := points[0].Date, points[len(points)-1].Date
		if err := e.Export(ctx, symbol, first, last, points); err != nil {
			return written, err
		}
		written = append(written, e.Path(symbol, first, last))
	}
	return written, nil
}
