// Package asdf reads and writes Advanced Scientific Data Format files:
// a human-readable YAML metadata tree paired with raw binary blocks
// holding n-dimensional array payloads, in one self-describing,
// versioned container.
//
// # Basic Usage
//
// Opening a file and reading an array:
//
//	import "github.com/asdf-format/asdf-go"
//
//	doc, _ := asdf.OpenFile("observation.asdf")
//	defer doc.Close()
//
//	root := doc.Root().(*document.Mapping)
//	arr, _ := root.Get("sequence")
//	data, _ := arr.(*extension.NDArrayDescriptor).Bytes()
//
// Building and writing a file:
//
//	doc, _ := asdf.NewDocument()
//	tree := document.NewMapping()
//	tree.Set("name", "Monty")
//	tree.Set("sequence", &extension.NDArrayDescriptor{
//	    Datatype: "int64", ByteOrder: "big", Shape: []int{100}, Data: payload,
//	})
//	doc.SetRoot(tree)
//	_ = asdf.WriteFile(doc, "observation.asdf")
//
// # Package Structure
//
// This package provides convenient top-level wrappers around the
// document package, with the core extension (ndarray, integer tags)
// pre-registered. For fine-grained control over extensions, validation,
// references, and block layout, use the document package directly.
package asdf

import (
	"github.com/asdf-format/asdf-go/document"
	"github.com/asdf-format/asdf-go/extension"
	"github.com/asdf-format/asdf-go/ioadapter"
)

// DefaultExtensions returns a fresh registry with the core extension
// (ndarray and arbitrary-precision integer tags) installed, the baseline
// every convenience wrapper in this package starts from.
func DefaultExtensions() *extension.Registry {
	reg := extension.NewRegistry()
	if err := reg.Register(extension.CoreExtension()); err != nil {
		// CoreExtension's tag patterns are compile-time constants; a
		// failure here is a programming error in this module.
		panic(err)
	}

	return reg
}

func withDefaults[T any](opts []T, dflt T) []T {
	return append([]T{dflt}, opts...)
}

// OpenFile opens the ASDF file at path read-write. Callers own the
// returned document and must Close it to release the file handle and
// any memory-mapped block views.
func OpenFile(path string, opts ...document.OpenOption) (*document.Document, error) {
	src, err := ioadapter.OpenFile(path, true)
	if err != nil {
		return nil, err
	}

	doc, err := document.Open(src, withDefaults(opts, document.WithExtensions(DefaultExtensions()))...)
	if err != nil {
		src.Close()
		return nil, err
	}

	return doc, nil
}

// OpenBytes opens an ASDF file already held in memory.
func OpenBytes(data []byte, opts ...document.OpenOption) (*document.Document, error) {
	src := ioadapter.NewMemorySource(data)
	return document.Open(src, withDefaults(opts, document.WithExtensions(DefaultExtensions()))...)
}

// NewDocument creates an empty document with the core extension
// installed, ready for SetRoot and WriteFile.
func NewDocument(opts ...document.WriteOption) (*document.Document, error) {
	return document.New(withDefaults(opts, document.WithExtensions(DefaultExtensions()))...)
}

// WriteFile serializes doc to a new file at path, truncating any
// existing contents.
func WriteFile(doc *document.Document, path string, opts ...document.WriteOption) error {
	sink, err := ioadapter.OpenFile(path, true)
	if err != nil {
		return err
	}

	if err := sink.Truncate(0); err != nil {
		sink.Close()
		return err
	}

	if err := doc.Write(sink, opts...); err != nil {
		sink.Close()
		return err
	}

	return nil
}

// WriteBytes serializes doc into a fresh in-memory buffer and returns
// its contents.
func WriteBytes(doc *document.Document, opts ...document.WriteOption) ([]byte, error) {
	sink := ioadapter.NewMemorySource(nil)

	if err := doc.Write(sink, opts...); err != nil {
		return nil, err
	}

	return sink.Bytes(), nil
}
