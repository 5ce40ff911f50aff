package pointcloud

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrBadHeader = errors.New("point cloud header must be \"rows cols\"")
	ErrShortRow  = errors.New("point cloud row has too few values")
)

// Read parses a point cloud in the "rows cols" header format followed by
// rows of whitespace separated values. The first three columns are
// multiplied by scale. Columns beyond the sixth are discarded and missing
// normal columns are left zero.
func Read(r io.Reader, scale float64) (Cloud, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	next := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		return sc.Text(), true
	}
	rs, ok1 := next()
	cs, ok2 := next()
	if !ok1 || !ok2 {
		return Cloud{}, ErrBadHeader
	}
	rows, err := strconv.Atoi(rs)
	if err != nil || rows < 0 {
		return Cloud{}, fmt.Errorf("%w: rows %q", ErrBadHeader, rs)
	}
	cols, err := strconv.Atoi(cs)
	if err != nil || cols < 3 {
		return Cloud{}, fmt.Errorf("%w: cols %q", ErrBadHeader, cs)
	}
	c := New(rows)
	for i := range rows {
		row := make([]float64, Cols)
		for j := range cols {
			tok, ok := next()
			if !ok {
				return Cloud{}, fmt.Errorf("row %d: %w", i, ErrShortRow)
			}
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return Cloud{}, fmt.Errorf("row %d col %d: %w", i, j, err)
			}
			if j < 3 {
				v *= scale
			}
			if j < Cols {
				row[j] = v
			}
		}
		c.m.SetRow(i, row)
	}
	if err := sc.Err(); err != nil {
		return Cloud{}, err
	}
	return c, nil
}

// Write writes c in the format understood by Read.
func Write(w io.Writer, c Cloud) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d %d\n", c.Len(), Cols)
	for i := range c.Len() {
		writeRow(bw, c.m, i)
	}
	return bw.Flush()
}

// WriteXYZ writes one point per line without a header.
func WriteXYZ(w io.Writer, c Cloud) error {
	bw := bufio.NewWriter(w)
	for i := range c.Len() {
		writeRow(bw, c.m, i)
	}
	return bw.Flush()
}

// ReadXYZ reads one point per line without a header. Blank lines and
// lines starting with '#' are skipped.
func ReadXYZ(r io.Reader, scale float64) (Cloud, error) {
	var rows [][]float64
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 3 {
			return Cloud{}, fmt.Errorf("line %d: %w", line, ErrShortRow)
		}
		row := make([]float64, Cols)
		for j, f := range fields {
			if j >= Cols {
				break
			}
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return Cloud{}, fmt.Errorf("line %d: %w", line, err)
			}
			if j < 3 {
				v *= scale
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return Cloud{}, err
	}
	c := New(len(rows))
	for i, row := range rows {
		c.m.SetRow(i, row)
	}
	return c, nil
}

func writeRow(w io.Writer, m *mat.Dense, i int) {
	for j, v := range m.RawRowView(i) {
		if j > 0 {
			io.WriteString(w, " ")
		}
		io.WriteString(w, strconv.FormatFloat(v, 'g', -1, 64))
	}
	io.WriteString(w, "\n")
}
