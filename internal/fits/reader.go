package fits

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// HDU is a header and data unit.
type HDU struct {
	Header Header
	data   []byte
}

// Name returns the EXTNAME of the unit, or an empty string.
func (h *HDU) Name() string {
	name, _ := h.Header.String("EXTNAME")
	return name
}

// File is a fully read FITS file.
type File struct {
	HDUs []*HDU
}

// Open reads every header and data unit from r.
func Open(r io.Reader) (*File, error) {
	br := bufio.NewReader(r)

	var f File
	for {
		hdr, err := readHeader(br)
		if errors.Is(err, io.EOF) && len(f.HDUs) > 0 {
			return &f, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading header of HDU %d: %w", len(f.HDUs), err)
		}

		size, err := dataSize(hdr)
		if err != nil {
			return nil, fmt.Errorf("HDU %d: %w", len(f.HDUs), err)
		}

		hdu := HDU{Header: hdr, data: make([]byte, size)}
		if _, err = io.ReadFull(br, hdu.data); err != nil {
			return nil, fmt.Errorf("reading data of HDU %d: %w", len(f.HDUs), err)
		}
		if pad := padding(size); pad > 0 {
			if _, err = br.Discard(pad); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("skipping padding of HDU %d: %w", len(f.HDUs), err)
			}
		}
		f.HDUs = append(f.HDUs, &hdu)
	}
}

// ReadHeader reads only the primary header from r.
func ReadHeader(r io.Reader) (Header, error) {
	hdr, err := readHeader(bufio.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("reading primary header: %w", err)
	}
	return hdr, nil
}

// Primary returns the primary header and data unit.
func (f *File) Primary() *HDU {
	return f.HDUs[0]
}

// Table returns the binary table stored in the HDU at index, where the primary
// HDU has index 0.
func (f *File) Table(index int) (*Table, error) {
	if index < 1 || index >= len(f.HDUs) {
		return nil, fmt.Errorf("fits: no extension at index %d (%d HDUs)", index, len(f.HDUs))
	}
	return newTable(f.HDUs[index])
}

// TableByName returns the first binary table whose EXTNAME matches name,
// ignoring case.
func (f *File) TableByName(name string) (*Table, error) {
	for _, hdu := range f.HDUs[1:] {
		if strings.EqualFold(hdu.Name(), name) {
			return newTable(hdu)
		}
	}
	return nil, fmt.Errorf("fits: no extension named %q", name)
}

// readHeader reads cards up to and including END, consuming whole blocks.
func readHeader(r io.Reader) (Header, error) {
	var hdr Header
	block := make([]byte, BlockSize)

	for first := true; ; first = false {
		if _, err := io.ReadFull(r, block); err != nil {
			if first && errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, err
		}

		for off := 0; off < BlockSize; off += CardSize {
			card, err := parseCard(block[off : off+CardSize])
			if err != nil {
				return nil, err
			}
			if card.Key == "END" {
				return hdr, nil
			}
			if card.Key == "" && card.Comment == "" {
				continue
			}
			hdr = append(hdr, card)
		}
	}
}

// dataSize returns the number of data bytes following a header, without padding.
func dataSize(hdr Header) (int, error) {
	naxis, err := hdr.Int("NAXIS")
	if err != nil {
		return 0, err
	}
	if naxis == 0 {
		return 0, nil
	}
	bitpix, err := hdr.Int("BITPIX")
	if err != nil {
		return 0, err
	}

	size := int64(1)
	for i := int64(1); i <= naxis; i++ {
		n, err := hdr.Int("NAXIS" + strconv.FormatInt(i, 10))
		if err != nil {
			return 0, err
		}
		size *= n
	}

	pcount, gcount := int64(0), int64(1)
	if v, err := hdr.Int("PCOUNT"); err == nil {
		pcount = v
	}
	if v, err := hdr.Int("GCOUNT"); err == nil {
		gcount = v
	}

	bytes := abs(bitpix) / 8 * gcount * (pcount + size)
	if bytes < 0 || bytes > math.MaxInt32 {
		return 0, fmt.Errorf("fits: unsupported data size %d", bytes)
	}
	return int(bytes), nil
}

func padding(n int) int {
	if rem := n % BlockSize; rem != 0 {
		return BlockSize - rem
	}
	return 0
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// columnFormat is a supported binary table TFORM code.
type columnFormat struct {
	code  byte
	width int
}

var formats = map[byte]columnFormat{
	'B': {code: 'B', width: 1},
	'I': {code: 'I', width: 2},
	'J': {code: 'J', width: 4},
	'K': {code: 'K', width: 8},
	'E': {code: 'E', width: 4},
	'D': {code: 'D', width: 8},
}

func parseFormat(tform string) (columnFormat, error) {
	tform = strings.TrimSpace(tform)
	if tform == "" {
		return columnFormat{}, errors.New("empty TFORM")
	}
	repeat := tform[:len(tform)-1]
	if repeat != "" && repeat != "1" {
		return columnFormat{}, fmt.Errorf("TFORM %q: only scalar columns are supported", tform)
	}
	f, ok := formats[tform[len(tform)-1]]
	if !ok {
		return columnFormat{}, fmt.Errorf("TFORM %q: unsupported type", tform)
	}
	return f, nil
}

// TableColumn describes one column of a binary table.
type TableColumn struct {
	Name   string
	Unit   string
	format columnFormat
	offset int
	scale  float64
	zero   float64
}

// Table is a binary table extension.
type Table struct {
	Header  Header
	Columns []TableColumn
	Rows    int
	width   int
	data    []byte
}

func newTable(hdu *HDU) (*Table, error) {
	xt, _ := hdu.Header.String("XTENSION")
	if strings.TrimSpace(xt) != "BINTABLE" {
		return nil, fmt.Errorf("fits: HDU %q is not a binary table", hdu.Name())
	}

	width, err := hdu.Header.Int("NAXIS1")
	if err != nil {
		return nil, err
	}
	rows, err := hdu.Header.Int("NAXIS2")
	if err != nil {
		return nil, err
	}
	fields, err := hdu.Header.Int("TFIELDS")
	if err != nil {
		return nil, err
	}

	t := Table{Header: hdu.Header, Rows: int(rows), width: int(width), data: hdu.data}
	offset := 0
	for i := 1; i <= int(fields); i++ {
		n := strconv.Itoa(i)
		tform, err := hdu.Header.String("TFORM" + n)
		if err != nil {
			return nil, err
		}
		format, err := parseFormat(tform)
		if err != nil {
			return nil, fmt.Errorf("fits: column %d: %w", i, err)
		}

		col := TableColumn{format: format, offset: offset, scale: 1}
		col.Name, _ = hdu.Header.String("TTYPE" + n)
		col.Unit, _ = hdu.Header.String("TUNIT" + n)
		if v, err := hdu.Header.Float("TSCAL" + n); err == nil {
			col.scale = v
		}
		if v, err := hdu.Header.Float("TZERO" + n); err == nil {
			col.zero = v
		}

		t.Columns = append(t.Columns, col)
		offset += format.width
	}

	if offset != t.width {
		return nil, fmt.Errorf("fits: table %q: columns span %d bytes, NAXIS1 is %d", hdu.Name(), offset, t.width)
	}
	if len(t.data) < t.width*t.Rows {
		return nil, fmt.Errorf("fits: table %q: truncated data", hdu.Name())
	}
	return &t, nil
}

// Column returns the values of the column named name, ignoring case, converted
// to float64 with TSCAL and TZERO applied.
func (t *Table) Column(name string) ([]float64, error) {
	for _, col := range t.Columns {
		if strings.EqualFold(col.Name, name) {
			return t.read(col), nil
		}
	}
	return nil, fmt.Errorf("fits: no column named %q", name)
}

func (t *Table) read(col TableColumn) []float64 {
	out := make([]float64, t.Rows)
	for row := range out {
		b := t.data[row*t.width+col.offset:]

		var v float64
		switch col.format.code {
		case 'B':
			v = float64(b[0])
		case 'I':
			v = float64(int16(binary.BigEndian.Uint16(b)))
		case 'J':
			v = float64(int32(binary.BigEndian.Uint32(b)))
		case 'K':
			v = float64(int64(binary.BigEndian.Uint64(b)))
		case 'E':
			v = float64(math.Float32frombits(binary.BigEndian.Uint32(b)))
		case 'D':
			v = math.Float64frombits(binary.BigEndian.Uint64(b))
		}
		out[row] = col.zero + col.scale*v
	}
	return out
}
