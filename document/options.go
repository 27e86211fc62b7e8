package document

import (
	"github.com/asdf-format/asdf-go/extension"
	"github.com/asdf-format/asdf-go/format"
	"github.com/asdf-format/asdf-go/internal/options"
	"github.com/asdf-format/asdf-go/ref"
	"github.com/asdf-format/asdf-go/schema"
)

// config holds every knob Open/Write/Update/New accept. Most settings
// (extensions, validator, base URI) are shared across read and write,
// so OpenOption and WriteOption are both aliases of the same
// options.Option[*config] shape (spec §6.1: "functional options ...
// drive document.OpenOption, document.WriteOption").
type config struct {
	BaseURI           string
	Extensions        *extension.Registry
	Validator         *schema.Validator
	DocumentSchemaURI string
	ValidateOnOpen    bool
	RaiseOnWarning    bool
	EagerReferences   bool
	RefLoader         ref.Loader

	FileFormatVersion format.Version
	StandardVersion   format.Version

	ArrayCompression     format.Code
	AllArrayStorage      format.StorageClass
	ArraySaveBase        bool
	ArrayInlineThreshold int
}

func defaultConfig() *config {
	return &config{
		Extensions:        extension.NewRegistry(),
		ValidateOnOpen:    true,
		FileFormatVersion: format.DefaultFileFormatVersion,
		StandardVersion:   format.StandardVersionLatest,
		ArraySaveBase:     true,
	}
}

// OpenOption configures Open.
type OpenOption = options.Option[*config]

// WriteOption configures Write, Update, and New.
type WriteOption = options.Option[*config]

// WithBaseURI sets the document's own location, used to resolve
// relative $ref values and relative external array sources.
func WithBaseURI(uri string) OpenOption {
	return options.NoError[*config](func(c *config) { c.BaseURI = uri })
}

// WithExtensions installs the extension registry Open/Write consult for
// tag<->type conversion, in place of an empty default registry.
func WithExtensions(reg *extension.Registry) OpenOption {
	return options.NoError[*config](func(c *config) { c.Extensions = reg })
}

// WithValidator installs the schema validator Open/Write run, in place
// of a validator backed by an empty schema registry.
func WithValidator(v *schema.Validator) OpenOption {
	return options.NoError[*config](func(c *config) { c.Validator = v })
}

// WithDocumentSchemaURI additionally validates the whole tree against a
// custom top-level schema (spec §4.E, "Custom top-level schema").
func WithDocumentSchemaURI(uri string) OpenOption {
	return options.NoError[*config](func(c *config) { c.DocumentSchemaURI = uri })
}

// WithValidateOnOpen toggles whether Open runs schema validation at
// all. Default true.
func WithValidateOnOpen(enabled bool) OpenOption {
	return options.NoError[*config](func(c *config) { c.ValidateOnOpen = enabled })
}

// WithRaiseOnValidationWarning makes Open return validation failures as
// a fatal error instead of collecting them on Warnings (spec §4.G,
// "Failure semantics": "configurable on open (warn vs raise)").
func WithRaiseOnValidationWarning(enabled bool) OpenOption {
	return options.NoError[*config](func(c *config) { c.RaiseOnWarning = enabled })
}

// WithEagerReferences makes Open inline every $ref via
// ref.ResolveReferences instead of the default lazy FindReferences
// proxy table.
func WithEagerReferences(enabled bool) OpenOption {
	return options.NoError[*config](func(c *config) { c.EagerReferences = enabled })
}

// WithRefLoader supplies the collaborator Open uses to fetch external
// documents a $ref points at.
func WithRefLoader(loader ref.Loader) OpenOption {
	return options.NoError[*config](func(c *config) { c.RefLoader = loader })
}

// WithFileFormatVersion overrides the file-format version a new
// document is created or written with.
func WithFileFormatVersion(v format.Version) WriteOption {
	return options.NoError[*config](func(c *config) { c.FileFormatVersion = v })
}

// WithStandardVersion overrides the standard version a new document is
// created or written with, governing which tag vocabulary and mapping-
// key restrictions apply.
func WithStandardVersion(v format.Version) WriteOption {
	return options.NoError[*config](func(c *config) { c.StandardVersion = v })
}

// WithAllArrayCompression compresses every written array block with
// code, unless a descriptor picks its own compression.
func WithAllArrayCompression(code format.Code) WriteOption {
	return options.NoError[*config](func(c *config) { c.ArrayCompression = code })
}

// WithAllArrayStorage forces every array onto one storage class
// (internal, external, or inline), overriding per-descriptor choices.
func WithAllArrayStorage(sc format.StorageClass) WriteOption {
	return options.NoError[*config](func(c *config) { c.AllArrayStorage = sc })
}

// WithArraySaveBase toggles backing-buffer dedup: when true (the
// default), arrays that are views over one base buffer share a single
// written block.
func WithArraySaveBase(enabled bool) WriteOption {
	return options.NoError[*config](func(c *config) { c.ArraySaveBase = enabled })
}

// WithArrayInlineThreshold stores arrays of n bytes or fewer inline in
// the YAML tree instead of as binary blocks. Zero (the default)
// disables the policy.
func WithArrayInlineThreshold(n int) WriteOption {
	return options.NoError[*config](func(c *config) { c.ArrayInlineThreshold = n })
}
