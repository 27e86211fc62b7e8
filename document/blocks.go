package document

import (
	"github.com/asdf-format/asdf-go/block"
	"github.com/asdf-format/asdf-go/errs"
)

// locateBlocks finds every block following the YAML document and opens
// a Store over them (spec §4.B, "Reading"; spec §4.G step 1). It tries
// the trailing block index first, falling back to a linear scan when no
// index is present, the index can't be read, or it fails its sanity
// checks. The last two cases record a WarningBlockIndexInvalid rather
// than failing the open; a missing index is scanned without a warning.
// A source that can't seek gets an empty Store: no blocks are located.
func (d *Document) locateBlocks(bodyEnd int64) error {
	if !d.src.IsSeekable() {
		d.blocks = block.NewStore()
		return nil
	}

	idx, ok, err := block.FindTrailer(d.src, bodyEnd)
	if err != nil {
		d.warnings = append(d.warnings, errs.Warning{
			Kind:    errs.WarningBlockIndexInvalid,
			Message: "block index unreadable, falling back to linear scan: " + err.Error(),
		})
	}

	if err == nil && ok {
		if size, haveSize := d.src.Size(); haveSize {
			if verr := idx.Validate(size); verr == nil {
				store, serr := block.OpenStore(d.src, idx)
				if serr != nil {
					return serr
				}

				d.blocks = store

				return nil
			}

			d.warnings = append(d.warnings, errs.Warning{
				Kind:    errs.WarningBlockIndexInvalid,
				Message: "block index failed validation, falling back to linear scan",
			})
		}
	}

	offsets, err := block.ScanBlocks(d.src, bodyEnd)
	if err != nil {
		return err
	}

	store, err := block.OpenStore(d.src, offsets)
	if err != nil {
		return err
	}

	d.blocks = store

	return nil
}
