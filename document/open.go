package document

import (
	"fmt"

	"github.com/asdf-format/asdf-go/errs"
	"github.com/asdf-format/asdf-go/extension"
	"github.com/asdf-format/asdf-go/format"
	"github.com/asdf-format/asdf-go/internal/options"
	"github.com/asdf-format/asdf-go/ioadapter"
	"github.com/asdf-format/asdf-go/ref"
	"github.com/asdf-format/asdf-go/schema"
	"github.com/asdf-format/asdf-go/yamltree"
)

// Open reads an ASDF file from src and materializes it into a Document,
// running spec §4.G's open pipeline: locate the magic and header
// (steps 1-2), extract the YAML document (step 3), parse it into a
// tagged tree (step 4), optionally resolve references and validate
// (step 5), and convert tagged→native via the extension registry
// (step 6).
func Open(src ioadapter.Source, opts ...OpenOption) (*Document, error) {
	cfg := defaultConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	hdr, err := readHeader(src)
	if err != nil {
		return nil, err
	}

	yamlBytes, bodyEnd, err := readYAMLBody(src)
	if err != nil {
		return nil, err
	}

	// Mapping-key uniqueness and key-type restrictions are validation
	// concerns, configurable on read (spec §7), so parsing is loose
	// here and the checks run inside validate below — which
	// WithValidateOnOpen(false) suppresses entirely.
	tree, err := yamltree.ParseLoose(yamlBytes)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		src:               src,
		baseURI:           cfg.BaseURI,
		bodyEnd:           bodyEnd,
		FileFormatVersion: hdr.FileFormatVersion,
		StandardVersion:   hdr.StandardVersion,
		tree:              tree,
		extensions:        cfg.Extensions,
	}

	if err := doc.locateBlocks(bodyEnd); err != nil {
		return nil, err
	}

	resolver := ref.NewResolver(cfg.BaseURI, tree, cfg.RefLoader)
	doc.resolver = resolver

	var refs ref.Table

	if cfg.EagerReferences {
		if err := resolver.ResolveReferences(tree); err != nil {
			return nil, err
		}
	} else {
		refs = ref.FindReferences(resolver, tree)
	}

	if cfg.ValidateOnOpen {
		if err := doc.validate(hdr, cfg); err != nil {
			if cfg.RaiseOnWarning {
				return nil, err
			}

			doc.warnings = append(doc.warnings, errs.Warning{Kind: errs.WarningSchemaValidation, Message: err.Error()})
		}
	}

	// Under standard <= 1.5 an integer literal outside signed 64-bit is
	// a warning rather than a validation error (spec §8, "Boundary
	// behaviours"); >= 1.6 reports it through validate above.
	if hdr.StandardVersion.LessThan(format.StandardVersion1_6) {
		doc.warnings = append(doc.warnings, schema.LargeLiteralWarnings(tree)...)
	}

	// Under standard <= 1.5, schema defaults fill in missing properties
	// of tagged nodes; >= 1.6 leaves the tree as written (spec §4.E
	// step 4).
	if hdr.StandardVersion.LessThan(format.StandardVersion1_6) && doc.validator != nil {
		for _, ext := range cfg.Extensions.Extensions() {
			for _, td := range ext.Tags {
				for _, schemaURI := range td.SchemaURIs {
					if err := doc.validator.FillDefaults(tree, td.URI, schemaURI); err != nil {
						return nil, fmt.Errorf("document: fill defaults for %s: %w", td.URI, err)
					}
				}
			}
		}
	}

	ctx := extension.NewContext(hdr.StandardVersion, doc.blocks, cfg.BaseURI)

	m := newMaterializer(cfg.Extensions, ctx, &doc.warnings, refs)

	root, err := m.convert(tree)
	if err != nil {
		return nil, err
	}

	if err := ctx.Drain(); err != nil {
		return nil, err
	}

	doc.root = root

	return doc, nil
}

func (d *Document) validate(hdr fileHeader, cfg *config) error {
	validator := cfg.Validator
	if validator == nil {
		validator = schema.NewValidator(schema.NewRegistry())
	}

	d.validator = validator

	return validator.Validate(d.tree, schema.Options{
		StandardVersion:   hdr.StandardVersion,
		DocumentSchemaURI: cfg.DocumentSchemaURI,
		TagSchemas:        cfg.Extensions.TagSchemas,
	})
}
