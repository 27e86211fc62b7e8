package block

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"

	"github.com/asdf-format/asdf-go/errs"
	"github.com/asdf-format/asdf-go/ioadapter"
)

// IndexMagic opens the block index trailer document (spec §6, "Optional
// block index").
const IndexMagic = "#ASDF BLOCK INDEX"

// Index is the optional trailing sequence of byte offsets of every
// internal block (spec §3, "Block index"). Presence is advisory: a
// reader that can't validate it falls back to ScanBlocks.
type Index []int64

// Bytes renders idx as the YAML flow-sequence trailer document.
func (idx Index) Bytes() []byte {
	var buf bytes.Buffer

	buf.WriteString(IndexMagic)
	buf.WriteString("\n%YAML 1.1\n---\n[")

	for i, off := range idx {
		if i > 0 {
			buf.WriteString(", ")
		}

		buf.WriteString(strconv.FormatInt(off, 10))
	}

	buf.WriteString("]\n...\n")

	return buf.Bytes()
}

// ParseIndex decodes the flow-sequence body of a block index trailer.
// It does not validate the offsets against the file; call Validate for
// that (spec §4.B, "Reading": "If present and passes sanity checks").
func ParseIndex(body []byte) (Index, error) {
	start := bytes.IndexByte(body, '[')
	end := bytes.LastIndexByte(body, ']')

	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: malformed block index document", errs.ErrBlockIndexInvalid)
	}

	fields := bytes.Split(body[start+1:end], []byte(","))

	var idx Index

	for _, f := range fields {
		f = bytes.TrimSpace(f)
		if len(f) == 0 {
			continue
		}

		n, err := strconv.ParseInt(string(f), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrBlockIndexInvalid, err)
		}

		idx = append(idx, n)
	}

	return idx, nil
}

// Validate checks idx against sanity rules (spec §4.B, "Reading"):
// offsets strictly increasing, all within fileSize, and the last block's
// header not extending past fileSize (its payload is not checked).
func (idx Index) Validate(fileSize int64) error {
	prev := int64(-1)

	for _, off := range idx {
		if off <= prev {
			return fmt.Errorf("%w: offsets not strictly increasing", errs.ErrBlockIndexInvalid)
		}

		if off < 0 || off >= fileSize {
			return fmt.Errorf("%w: offset %d out of file bounds", errs.ErrBlockIndexInvalid, off)
		}

		prev = off
	}

	if len(idx) > 0 && idx[len(idx)-1]+HeaderSize > fileSize {
		return fmt.Errorf("%w: last block header extends past end of file", errs.ErrBlockIndexInvalid)
	}

	return nil
}

// trailerWindow bounds how far back from end-of-file FindTrailer
// searches for the index magic. An index of even thousands of blocks
// fits well within it.
const trailerWindow = 64 * 1024

// FindTrailer searches the tail of src, no earlier than searchStart (the
// end of the YAML document), for an index trailer document. It returns
// ok=false if none is found or the source isn't seekable, never an error
// for a simply-absent trailer (spec §3, "Presence is advisory").
func FindTrailer(src ioadapter.Source, searchStart int64) (Index, bool, error) {
	size, ok := src.Size()
	if !ok || !src.IsSeekable() {
		return nil, false, nil
	}

	if searchStart >= size {
		return nil, false, nil
	}

	windowStart := searchStart
	if size-windowStart > trailerWindow {
		windowStart = size - trailerWindow
	}

	if err := src.Seek(windowStart); err != nil {
		return nil, false, err
	}

	window, err := src.Read(int(size - windowStart))
	if err != nil {
		return nil, false, err
	}

	// The trailer abuts the last block's payload directly, so the magic
	// is not line-anchored; the last occurrence in the window wins.
	at := bytes.LastIndex(window, []byte(IndexMagic))
	if at < 0 {
		return nil, false, nil
	}

	rest := window[at:]

	scanner := bufio.NewScanner(bytes.NewReader(rest))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var doc bytes.Buffer

	inDoc := false

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "---":
			inDoc = true
		case line == "..." && inDoc:
			idx, err := ParseIndex(doc.Bytes())
			return idx, err == nil, err
		case inDoc:
			doc.WriteString(line)
			doc.WriteByte('\n')
		}
	}

	return nil, false, nil
}
