package auctionapi

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ReceiptCOSE is a raw COSE_Sign1 auction receipt.
type ReceiptCOSE []byte

// ReceiptCOSEBase64 is a receipt in standard base64, as carried in JSON.
type ReceiptCOSEBase64 string

// ReceiptCOSEURLBase64 is a receipt in unpadded URL-safe base64.
type ReceiptCOSEURLBase64 string

// ReceiptCOSEGzip is a gzipped receipt in unpadded URL-safe base64, for query strings.
type ReceiptCOSEGzip string

// EncodeBase64 encodes the receipt with standard base64
func (r ReceiptCOSE) EncodeBase64() ReceiptCOSEBase64 {
	return ReceiptCOSEBase64(base64.StdEncoding.EncodeToString(r))
}

// EncodeURLSafe encodes the receipt with unpadded URL-safe base64
func (r ReceiptCOSE) EncodeURLSafe() ReceiptCOSEURLBase64 {
	return ReceiptCOSEURLBase64(base64.RawURLEncoding.EncodeToString(r))
}

// CompressGzip gzips the receipt and encodes it with unpadded URL-safe base64
func (r ReceiptCOSE) CompressGzip() (ReceiptCOSEGzip, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(r); err != nil {
		return "", fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("gzip close: %w", err)
	}
	return ReceiptCOSEGzip(base64.RawURLEncoding.EncodeToString(buf.Bytes())), nil
}

func (r ReceiptCOSEBase64) String() string { return string(r) }

// Decode returns the raw receipt bytes
func (r ReceiptCOSEBase64) Decode() (ReceiptCOSE, error) {
	data, err := base64.StdEncoding.DecodeString(string(r))
	if err != nil {
		return nil, fmt.Errorf("decode COSE base64: %w", err)
	}
	return ReceiptCOSE(data), nil
}

// CompressGzip converts a base64 receipt to its gzipped URL-safe form
func (r ReceiptCOSEBase64) CompressGzip() (ReceiptCOSEGzip, error) {
	raw, err := r.Decode()
	if err != nil {
		return "", err
	}
	return raw.CompressGzip()
}

func (r ReceiptCOSEURLBase64) String() string { return string(r) }

// Decode returns the raw receipt bytes. Padding is optional.
func (r ReceiptCOSEURLBase64) Decode() (ReceiptCOSE, error) {
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(string(r), "="))
	if err != nil {
		return nil, fmt.Errorf("decode COSE base64url: %w", err)
	}
	return ReceiptCOSE(data), nil
}

func (r ReceiptCOSEGzip) String() string { return string(r) }

// Decompress returns the raw receipt bytes
func (r ReceiptCOSEGzip) Decompress() (ReceiptCOSE, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(string(r))
	if err != nil {
		return nil, fmt.Errorf("decode base64url: %w", err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("open gzip reader: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("read gzip: %w", err)
	}
	return ReceiptCOSE(data), nil
}
