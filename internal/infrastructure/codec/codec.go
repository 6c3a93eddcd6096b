package codec

import (
	"encoding/json"
	"fmt"

	"reelhub/internal/core/ports"

	"github.com/fxamacker/cbor/v2"
)

const (
	JSON = "json"
	CBOR = "cbor"
)

// New returns the document codec registered under name.
func New(name string) (ports.Codec, error) {
	switch name {
	case "", JSON:
		return jsonCodec{}, nil
	case CBOR:
		return newCBORCodec()
	default:
		return nil, fmt.Errorf("unknown document codec %q", name)
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return JSON }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// cborCodec writes deterministic CBOR with RFC 3339 timestamps so documents
// decode to the same values the JSON codec produces.
type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() (*cborCodec, error) {
	encOpts := cbor.CoreDetEncOptions()
	encOpts.Time = cbor.TimeRFC3339Nano
	enc, err := encOpts.EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor encoder: %w", err)
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("cbor decoder: %w", err)
	}
	return &cborCodec{enc: enc, dec: dec}, nil
}

func (c *cborCodec) Name() string { return CBOR }

func (c *cborCodec) Marshal(v any) ([]byte, error) { return c.enc.Marshal(v) }

func (c *cborCodec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }
