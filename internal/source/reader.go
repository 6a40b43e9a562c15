package source

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// maxDecodedSize bounds the size of a decompressed payload.
const maxDecodedSize = 256 << 20

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	dataURL   = []byte("data:")
)

// ReadFile reads a payload from disk, or from stdin when path is "-".
func ReadFile(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(io.LimitReader(os.Stdin, maxDecodedSize))
	}
	return os.ReadFile(path)
}

// Decode unwraps a raw payload body: a "data:<mime>;base64," URL as produced
// by browser file uploads, then gzip or zstd compression detected by magic bytes.
func Decode(data []byte) ([]byte, error) {
	data = bytes.TrimSpace(data)

	if bytes.HasPrefix(data, dataURL) {
		decoded, err := DecodeDataURL(data)
		if err != nil {
			return nil, err
		}
		data = bytes.TrimSpace(decoded)
	}

	switch {
	case bytes.HasPrefix(data, gzipMagic):
		return gunzip(data)
	case bytes.HasPrefix(data, zstdMagic):
		return unzstd(data)
	}
	return data, nil
}

// DecodeDataURL returns the body of a data URL. Only the part after the first
// comma is used; it is base64 decoded when the header says so, otherwise
// percent-decoded.
func DecodeDataURL(data []byte) ([]byte, error) {
	header, body, ok := bytes.Cut(data, []byte(","))
	if !ok {
		return nil, errors.New("data URL has no payload")
	}
	if !bytes.HasSuffix(header, []byte(";base64")) {
		s, err := url.PathUnescape(string(body))
		if err != nil {
			return nil, fmt.Errorf("decoding data URL: %w", err)
		}
		return []byte(s), nil
	}

	body = bytes.TrimRight(body, "\r\n")
	out := make([]byte, base64.StdEncoding.DecodedLen(len(body)))
	n, err := base64.StdEncoding.Decode(out, body)
	if err != nil {
		// Some encoders drop padding.
		n, err = base64.RawStdEncoding.Decode(out, bytes.TrimRight(body, "="))
		if err != nil {
			return nil, fmt.Errorf("decoding data URL: %w", err)
		}
	}
	return out[:n], nil
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening gzip payload: %w", err)
	}
	defer func() { _ = zr.Close() }()

	out, err := io.ReadAll(io.LimitReader(zr, maxDecodedSize))
	if err != nil {
		return nil, fmt.Errorf("reading gzip payload: %w", err)
	}
	return out, nil
}

func unzstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("reading zstd payload: %w", err)
	}
	return out, nil
}
