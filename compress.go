package kafka

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io/ioutil"

	"github.com/eapache/go-xerial-snappy"
	"github.com/pierrec/lz4/v4"
)

// compress encodes payload under the given codec, producing the bytes that
// become an outer message's value (§4.1: "payload is a single outer message
// whose value is the compressed bytes of an inner message set").
func compress(codec CompressionCodec, payload []byte) ([]byte, error) {
	switch codec {
	case CompressionNone:
		return payload, nil
	case CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(payload); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CompressionSnappy:
		return snappy.Encode(payload)
	case CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(payload); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, PacketEncodingError{fmt.Sprintf("unsupported compression codec (%d)", int8(codec))}
	}
}

func decompress(codec CompressionCodec, payload []byte) ([]byte, error) {
	switch codec {
	case CompressionNone:
		return payload, nil
	case CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return ioutil.ReadAll(r)
	case CompressionSnappy:
		return snappy.Decode(payload)
	case CompressionLZ4:
		r := lz4.NewReader(bytes.NewReader(payload))
		return ioutil.ReadAll(r)
	default:
		return nil, PacketDecodingError{fmt.Sprintf("unsupported compression codec (%d)", int8(codec))}
	}
}
