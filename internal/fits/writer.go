package fits

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

// Column is a binary table column to write. Format is a single TFORM type
// code: B, I, J, K, E or D.
type Column struct {
	Name   string
	Format string
	Unit   string
	Data   []float64
}

// Writer writes a FITS file as a primary HDU without data followed by binary
// table extensions.
type Writer struct {
	w *bufio.Writer
}

// Create writes the primary header, extended with the cards of primary, and
// returns a writer for the extensions.
func Create(w io.Writer, primary Header) (*Writer, error) {
	fw := &Writer{w: bufio.NewWriter(w)}

	hdr := Header{
		{Key: "SIMPLE", Value: true, Comment: "conforms to FITS standard"},
		{Key: "BITPIX", Value: int64(8), Comment: "array data type"},
		{Key: "NAXIS", Value: int64(0), Comment: "number of array dimensions"},
		{Key: "EXTEND", Value: true},
	}
	hdr = append(hdr, primary...)

	if err := fw.writeHeader(hdr); err != nil {
		return nil, fmt.Errorf("writing primary header: %w", err)
	}
	return fw, nil
}

// WriteTable writes a binary table extension named name. Every column must
// have the same number of rows. The cards of extra are appended to the
// generated table header.
func (fw *Writer) WriteTable(name string, columns []Column, extra Header) error {
	if len(columns) == 0 {
		return errors.New("fits: table has no columns")
	}

	rows := len(columns[0].Data)
	formats := make([]columnFormat, len(columns))
	width := 0
	for i, col := range columns {
		if len(col.Data) != rows {
			return fmt.Errorf("fits: column %s has %d rows, expected %d", col.Name, len(col.Data), rows)
		}
		f, err := parseFormat(col.Format)
		if err != nil {
			return fmt.Errorf("fits: column %s: %w", col.Name, err)
		}
		formats[i] = f
		width += f.width
	}

	hdr := Header{
		{Key: "XTENSION", Value: "BINTABLE", Comment: "binary table extension"},
		{Key: "BITPIX", Value: int64(8), Comment: "array data type"},
		{Key: "NAXIS", Value: int64(2), Comment: "number of array dimensions"},
		{Key: "NAXIS1", Value: int64(width), Comment: "length of dimension 1"},
		{Key: "NAXIS2", Value: int64(rows), Comment: "length of dimension 2"},
		{Key: "PCOUNT", Value: int64(0), Comment: "number of group parameters"},
		{Key: "GCOUNT", Value: int64(1), Comment: "number of groups"},
		{Key: "TFIELDS", Value: int64(len(columns)), Comment: "number of table fields"},
	}
	for i, col := range columns {
		n := strconv.Itoa(i + 1)
		hdr = append(hdr,
			Card{Key: "TTYPE" + n, Value: col.Name},
			Card{Key: "TFORM" + n, Value: col.Format})
		if col.Unit != "" {
			hdr = append(hdr, Card{Key: "TUNIT" + n, Value: col.Unit})
		}
	}
	if name != "" {
		hdr = append(hdr, Card{Key: "EXTNAME", Value: name})
	}
	hdr = append(hdr, extra...)

	if err := fw.writeHeader(hdr); err != nil {
		return fmt.Errorf("writing %s header: %w", name, err)
	}

	buf := make([]byte, 8)
	for row := range rows {
		for i, col := range columns {
			b := buf[:formats[i].width]
			encode(b, formats[i].code, col.Data[row])
			if _, err := fw.w.Write(b); err != nil {
				return fmt.Errorf("writing %s data: %w", name, err)
			}
		}
	}
	return fw.pad(width*rows, 0)
}

// Close flushes buffered data. It does not close the underlying writer.
func (fw *Writer) Close() error {
	return fw.w.Flush()
}

func (fw *Writer) writeHeader(hdr Header) error {
	written := 0
	for _, c := range append(hdr, Card{Key: "END"}) {
		b, err := formatCard(c)
		if err != nil {
			return err
		}
		if _, err = fw.w.Write(b); err != nil {
			return err
		}
		written += CardSize
	}
	return fw.pad(written, ' ')
}

func (fw *Writer) pad(n int, fill byte) error {
	for range padding(n) {
		if err := fw.w.WriteByte(fill); err != nil {
			return err
		}
	}
	return nil
}

func encode(b []byte, code byte, v float64) {
	switch code {
	case 'B':
		b[0] = byte(v)
	case 'I':
		binary.BigEndian.PutUint16(b, uint16(int16(v)))
	case 'J':
		binary.BigEndian.PutUint32(b, uint32(int32(v)))
	case 'K':
		binary.BigEndian.PutUint64(b, uint64(int64(v)))
	case 'E':
		binary.BigEndian.PutUint32(b, math.Float32bits(float32(v)))
	case 'D':
		binary.BigEndian.PutUint64(b, math.Float64bits(v))
	}
}
