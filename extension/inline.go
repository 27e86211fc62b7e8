package extension

import (
	"fmt"
	"strconv"

	"github.com/asdf-format/asdf-go/endian"
	"github.com/asdf-format/asdf-go/yamltree"
)

// engineFor picks the byte-order engine an ndarray's payload bytes are
// packed with (spec §3, "ndarray.byteorder" — independent of the block
// header's own fixed big-endian layout).
func engineFor(byteorder string) endian.EndianEngine {
	if byteorder == "little" {
		return endian.GetLittleEndianEngine()
	}

	return endian.GetBigEndianEngine()
}

func dtypeSize(datatype string) (int, error) {
	switch datatype {
	case "int8", "uint8", "bool":
		return 1, nil
	case "int16", "uint16":
		return 2, nil
	case "int32", "uint32", "float32":
		return 4, nil
	case "int64", "uint64", "float64":
		return 8, nil
	default:
		return 0, fmt.Errorf("extension: inline encoding: unsupported datatype %q", datatype)
	}
}

// encodeInline renders raw little/big-endian-packed bytes as a flow
// sequence of decimal scalars, the inline storage class named in spec
// §3 ("inline ... encoded as a YAML sequence of scalars, no block").
// byteorder is assumed big-endian for encode/decode symmetry with
// NDArrayDescriptor.ByteOrder, which callers set explicitly.
func encodeInline(datatype string, data []byte) (*yamltree.Node, error) {
	size, err := dtypeSize(datatype)
	if err != nil {
		return nil, err
	}

	if size == 0 || len(data)%size != 0 {
		return nil, fmt.Errorf("extension: inline encoding: data length %d not a multiple of element size %d", len(data), size)
	}

	e := endian.GetBigEndianEngine()
	seq := yamltree.NewSequence()
	seq.SetStyle(yamltree.FlowStyle)

	for off := 0; off < len(data); off += size {
		elem := data[off : off+size]

		var scalar *yamltree.Node

		switch datatype {
		case "bool":
			v := elem[0] != 0
			scalar = yamltree.NewScalar("!!bool", strconv.FormatBool(v))
		case "int8":
			scalar = yamltree.NewScalar("!!int", strconv.Itoa(int(int8(elem[0]))))
		case "uint8":
			scalar = yamltree.NewScalar("!!int", strconv.Itoa(int(elem[0])))
		case "int16":
			scalar = yamltree.NewScalar("!!int", strconv.Itoa(int(int16(e.Uint16(elem)))))
		case "uint16":
			scalar = yamltree.NewScalar("!!int", strconv.Itoa(int(e.Uint16(elem))))
		case "int32":
			scalar = yamltree.NewScalar("!!int", strconv.Itoa(int(int32(e.Uint32(elem)))))
		case "uint32":
			scalar = yamltree.NewScalar("!!int", strconv.FormatUint(uint64(e.Uint32(elem)), 10))
		case "int64":
			scalar = yamltree.NewScalar("!!int", strconv.FormatInt(int64(e.Uint64(elem)), 10))
		case "uint64":
			scalar = yamltree.NewScalar("!!int", strconv.FormatUint(e.Uint64(elem), 10))
		case "float32":
			scalar = yamltree.NewScalar("!!float", strconv.FormatFloat(float64(float32FromBits(e.Uint32(elem))), 'g', -1, 32))
		case "float64":
			scalar = yamltree.NewScalar("!!float", strconv.FormatFloat(float64FromBits(e.Uint64(elem)), 'g', -1, 64))
		}

		seq.Append(scalar)
	}

	return seq, nil
}

// decodeInline is encodeInline's inverse.
func decodeInline(datatype string, seq *yamltree.Node) ([]byte, error) {
	size, err := dtypeSize(datatype)
	if err != nil {
		return nil, err
	}

	e := endian.GetBigEndianEngine()
	els := seq.Elements()
	out := make([]byte, 0, len(els)*size)

	for _, el := range els {
		switch datatype {
		case "bool":
			v, err := strconv.ParseBool(el.Value())
			if err != nil {
				return nil, err
			}

			if v {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		case "int8":
			v, err := strconv.ParseInt(el.Value(), 10, 8)
			if err != nil {
				return nil, err
			}

			out = append(out, byte(int8(v)))
		case "uint8":
			v, err := strconv.ParseUint(el.Value(), 10, 8)
			if err != nil {
				return nil, err
			}

			out = append(out, byte(v))
		case "int16":
			v, err := strconv.ParseInt(el.Value(), 10, 16)
			if err != nil {
				return nil, err
			}

			out = e.AppendUint16(out, uint16(int16(v)))
		case "uint16":
			v, err := strconv.ParseUint(el.Value(), 10, 16)
			if err != nil {
				return nil, err
			}

			out = e.AppendUint16(out, uint16(v))
		case "int32":
			v, err := strconv.ParseInt(el.Value(), 10, 32)
			if err != nil {
				return nil, err
			}

			out = e.AppendUint32(out, uint32(int32(v)))
		case "uint32":
			v, err := strconv.ParseUint(el.Value(), 10, 32)
			if err != nil {
				return nil, err
			}

			out = e.AppendUint32(out, uint32(v))
		case "int64":
			v, err := strconv.ParseInt(el.Value(), 10, 64)
			if err != nil {
				return nil, err
			}

			out = e.AppendUint64(out, uint64(v))
		case "uint64":
			v, err := strconv.ParseUint(el.Value(), 10, 64)
			if err != nil {
				return nil, err
			}

			out = e.AppendUint64(out, v)
		case "float32":
			v, err := strconv.ParseFloat(el.Value(), 32)
			if err != nil {
				return nil, err
			}

			out = e.AppendUint32(out, float32Bits(float32(v)))
		case "float64":
			v, err := strconv.ParseFloat(el.Value(), 64)
			if err != nil {
				return nil, err
			}

			out = e.AppendUint64(out, float64Bits(v))
		}
	}

	return out, nil
}
