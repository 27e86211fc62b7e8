package document

import (
	"bytes"
	"fmt"

	"github.com/asdf-format/asdf-go/errs"
	"github.com/asdf-format/asdf-go/ioadapter"
)

// readYAMLBody reads lines from src (positioned right after the "---"
// document-start marker) up to and including the "..." document-end
// marker, returning the body between them and the absolute offset the
// following bytes (blocks, or trailing padding) start at (spec §3,
// "File": "a YAML document delimited by ---/..."; spec §4.B, "Reading":
// "scan forward from the end of the YAML document").
func readYAMLBody(src ioadapter.Source) (body []byte, bodyEnd int64, err error) {
	var buf bytes.Buffer

	for {
		line, err := src.ReadUntil('\n')
		if err != nil {
			return nil, 0, fmt.Errorf("document: read YAML body: %w", err)
		}

		if len(line) == 0 {
			return nil, 0, errs.ErrNoYAMLDocument
		}

		trimmed := bytes.TrimRight(line, "\n")
		if bytes.Equal(trimmed, []byte("...")) {
			end, _ := src.Tell()
			return buf.Bytes(), end, nil
		}

		buf.Write(line)
	}
}
