package codec

import (
	cbor "github.com/fxamacker/cbor/v2"
	"github.com/go-kratos/kratos/v2/encoding"
)

// CBORName is the content subtype REST clients ask for with
// "Accept: application/cbor".
const CBORName = "cbor"

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
	encoding.RegisterCodec(cborCodec{enc: em, dec: dm})
}

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func (c cborCodec) Marshal(v any) ([]byte, error)      { return c.enc.Marshal(v) }
func (c cborCodec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }
func (cborCodec) Name() string                         { return CBORName }
