package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/asdf-format/asdf-go/errs"
	"github.com/asdf-format/asdf-go/format"
	"github.com/asdf-format/asdf-go/ioadapter"
)

// magicPrefix opens the file-format-version header line (spec §6,
// "File format (on-disk)", line 1).
const magicPrefix = "#ASDF "

// standardPrefix opens the optional standard-version header line.
const standardPrefix = "#ASDF_STANDARD "

// fileHeader is the parsed result of the file's leading lines: the
// file-format and standard versions, and the byte offset the YAML
// document itself starts at (spec §3, "File": "magic header line ...
// optional standard line ... optional YAML comment lines ... YAML
// document delimited by ---/...").
type fileHeader struct {
	FileFormatVersion format.Version
	StandardVersion   format.Version
	// HasStandardLine records whether the input actually carried a
	// #ASDF_STANDARD line, so Open can tell "absent, defaulted" apart
	// from "present and equal to the default" (not itself load-bearing
	// today, but kept for callers that care).
	HasStandardLine bool
}

// readHeader locates the magic (skipping arbitrary non-null prefix
// bytes, spec §3, "may also start with arbitrary non-null prefix bytes")
// and parses the header lines up to (not including) the "---" document
// start. src's position is left at the start of the YAML document.
func readHeader(src ioadapter.Source) (fileHeader, error) {
	h := fileHeader{StandardVersion: format.StandardVersionEarliest}

	if err := seekToMagic(src); err != nil {
		return fileHeader{}, err
	}

	line, err := src.ReadUntil('\n')
	if err != nil {
		return fileHeader{}, fmt.Errorf("document: read magic line: %w", err)
	}

	versionStr, ok := strings.CutPrefix(strings.TrimRight(string(line), "\n"), magicPrefix)
	if !ok {
		return fileHeader{}, errs.ErrBadMagic
	}

	v, err := format.ParseVersion(versionStr)
	if err != nil {
		return fileHeader{}, fmt.Errorf("%w: %v", errs.ErrBadMagic, err)
	}

	h.FileFormatVersion = v

	for {
		line, err := src.ReadUntil('\n')
		if err != nil {
			return fileHeader{}, fmt.Errorf("document: read header line: %w", err)
		}

		text := strings.TrimRight(string(line), "\n")

		switch {
		case text == "---":
			return h, nil
		case strings.HasPrefix(text, standardPrefix):
			sv, err := format.ParseVersion(strings.TrimPrefix(text, standardPrefix))
			if err != nil {
				return fileHeader{}, fmt.Errorf("document: parse standard version: %w", err)
			}

			h.StandardVersion = sv
			h.HasStandardLine = true
		case strings.HasPrefix(text, "#"):
			// YAML comment line or tag-handle shortcut line; skip.
		case text == "":
			// blank line before "---"; skip.
		default:
			return fileHeader{}, fmt.Errorf("%w: unexpected header line %q", errs.ErrTruncatedHeader, text)
		}
	}
}

// seekToMagic advances src past any non-null prefix bytes preceding the
// magic header line (spec §3, last sentence of "File": "the parser must
// locate the magic"). It searches only a seekable source: on a
// forward-only stream it returns at once without reading, since a
// search would consume bytes the caller still needs to re-read as the
// header, so there the magic must come first.
func seekToMagic(src ioadapter.Source) error {
	if !src.IsSeekable() {
		return nil
	}

	size, ok := src.Size()
	if !ok {
		return nil
	}

	if err := src.Seek(0); err != nil {
		return err
	}

	window := size
	if window > 4096 {
		window = 4096
	}

	probe, err := src.Read(int(window))
	if err != nil {
		return fmt.Errorf("document: probe for magic: %w", err)
	}

	idx := bytes.Index(probe, []byte(magicPrefix))
	if idx < 0 {
		return errs.ErrBadMagic
	}

	return src.Seek(int64(idx))
}

// writeHeader renders the two header lines this module always emits on
// write (spec §8, "Boundary behaviours": "writes always emit both
// lines").
func writeHeader(ff, std format.Version) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s%s\n", magicPrefix, ff)
	fmt.Fprintf(&buf, "%s%s\n", standardPrefix, std)

	return buf.Bytes()
}
