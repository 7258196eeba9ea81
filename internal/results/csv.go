package results

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/forecourt/internal/model"
)

// CSVTable stores results in a headered comma-separated file.
type CSVTable struct {
	path string
}

// NewCSVTable returns a table backed by path. The file is created lazily.
func NewCSVTable(path string) *CSVTable {
	return &CSVTable{path: path}
}

// Path returns the file backing the table.
func (t *CSVTable) Path() string { return t.path }

// SiteIDs returns the SiteID of every stored row in file order.
func (t *CSVTable) SiteIDs(ctx context.Context) ([]string, error) {
	return siteIDs(ctx, t)
}

// List decodes every row. Records shorter or longer than the header are
// padded or cut to fit, so hand-edited files still load.
func (t *CSVTable) List(_ context.Context) ([]model.InferenceResult, error) {
	f, err := os.Open(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "results: open %s", t.path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	dec, err := csvutil.NewDecoder(&raggedReader{r: r})
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "results: read header %s", t.path)
	}

	var out []model.InferenceResult
	for {
		var rec record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "results: decode %s", t.path)
		}
		out = append(out, rec.result())
	}
	return out, nil
}

// Append writes one row, creating the file with a header when it is missing
// or empty. Existing files keep their own column order.
func (t *CSVTable) Append(_ context.Context, res model.InferenceResult) error {
	if res.SiteID == "" {
		return eris.New("results: append row without SiteID")
	}

	size, err := fileSize(t.path)
	if err != nil {
		return err
	}
	if size == 0 {
		return t.create(toRecord(res))
	}

	header, err := t.header()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return eris.Wrapf(err, "results: open %s", t.path)
	}
	if err := terminateLine(f, size); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "results: write %s", t.path)
	}
	w := csv.NewWriter(f)
	if err := w.Write(toRecord(res).row(header)); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "results: write %s", t.path)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "results: flush %s", t.path)
	}
	return eris.Wrapf(f.Close(), "results: close %s", t.path)
}

// create writes a new file holding the header and one row.
func (t *CSVTable) create(rec record) error {
	f, err := os.Create(t.path)
	if err != nil {
		return eris.Wrapf(err, "results: create %s", t.path)
	}
	w := csv.NewWriter(f)
	enc := csvutil.NewEncoder(w)
	if err := enc.Encode(rec); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "results: encode %s", t.path)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "results: flush %s", t.path)
	}
	return eris.Wrapf(f.Close(), "results: close %s", t.path)
}

func (t *CSVTable) header() ([]string, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, eris.Wrapf(err, "results: open %s", t.path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrapf(err, "results: read header %s", t.path)
	}
	return header, nil
}

// terminateLine adds a newline when the file does not already end in one.
func terminateLine(f *os.File, size int64) error {
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}
	_, err := f.Write([]byte("\n"))
	return err
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "results: stat %s", path)
	}
	return info.Size(), nil
}

// raggedReader fits every record after the header to the header width.
type raggedReader struct {
	r     *csv.Reader
	width int
}

func (rr *raggedReader) Read() ([]string, error) {
	rec, err := rr.r.Read()
	if err != nil {
		return nil, err
	}
	if rr.width == 0 {
		rr.width = len(rec)
		return rec, nil
	}
	switch {
	case len(rec) > rr.width:
		rec = rec[:rr.width]
	case len(rec) < rr.width:
		rec = append(rec, make([]string, rr.width-len(rec))...)
	}
	return rec, nil
}
