package document

import (
	"fmt"
	"strings"

	"github.com/asdf-format/asdf-go/block"
	"github.com/asdf-format/asdf-go/errs"
	"github.com/asdf-format/asdf-go/format"
	"github.com/asdf-format/asdf-go/ioadapter"
)

// ExternalBlockName returns the companion file name the exploded form
// uses for block n of the primary file stem (spec §6, "Exploded form":
// "<stem>NNNN.asdf").
func ExternalBlockName(stem string, n int) string {
	stem = strings.TrimSuffix(stem, ".asdf")
	return fmt.Sprintf("%s%04d.asdf", stem, n)
}

// WriteExternalBlock writes a companion file holding exactly one block
// in a minimal header envelope: the two header lines, an empty tree,
// and the block itself.
func WriteExternalBlock(sink ioadapter.Source, data []byte, compression format.Code) error {
	if _, err := sink.Write(writeHeader(format.DefaultFileFormatVersion, format.StandardVersionLatest)); err != nil {
		return err
	}

	if _, err := sink.Write([]byte("---\n{}\n...\n")); err != nil {
		return err
	}

	s := block.NewStore()
	if _, _, err := s.Add(block.Spec{Data: data, Compression: compression}); err != nil {
		return err
	}

	if _, err := s.WriteTo(sink); err != nil {
		return err
	}

	return nil
}

// ReadExternalBlock opens a companion file and returns its single
// block's payload.
func ReadExternalBlock(src ioadapter.Source) ([]byte, error) {
	if _, err := readHeader(src); err != nil {
		return nil, err
	}

	_, bodyEnd, err := readYAMLBody(src)
	if err != nil {
		return nil, err
	}

	offsets, err := block.ScanBlocks(src, bodyEnd)
	if err != nil {
		return nil, err
	}

	if len(offsets) != 1 {
		return nil, fmt.Errorf("%w: external block file holds %d blocks, want exactly 1", errs.ErrBlockHeaderError, len(offsets))
	}

	blk, err := block.ReadBlock(src, offsets[0])
	if err != nil {
		return nil, err
	}

	return blk.Data, nil
}
