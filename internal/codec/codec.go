// Package codec serializes snapshot documents to the blob form stored in
// remote object storage. Two implementations exist: GzipCodec (canonical JSON
// compressed with gzip) and PassthroughCodec (plain JSON, used when
// compression is switched off). The content type is the only framing; there
// is no magic-byte header, so decoding always tries the plain form first and
// only then the compression transform.
package codec

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	json "github.com/goccy/go-json"

	"github.com/mkalvis/stockvault/internal/common"
	"github.com/mkalvis/stockvault/internal/models"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeGzip = "application/gzip"

	ExtJSON = ".json"
	ExtGzip = ".json.gz"
)

// Codec converts between snapshot documents and stored blob bytes.
//
// Decode must accept both the compressed and plain forms transparently,
// because a blob may have been written while compression was unavailable.
type Codec interface {
	// Encode serializes doc, returning the blob and its content type.
	Encode(doc *models.SnapshotDocument) ([]byte, string, error)

	// Decode parses a blob in either form back into a document.
	Decode(data []byte) (*models.SnapshotDocument, error)

	// Ext returns the file extension Encode's output should be stored under.
	Ext() string

	// Compressed reports whether Encode produces the compressed form.
	Compressed() bool
}

// Detect selects the codec once at startup. Compression is always linked
// into the binary, so the only reason to run without it is an explicit
// configuration switch.
func Detect(disableCompression bool) Codec {
	if disableCompression {
		return &PassthroughCodec{}
	}
	return &GzipCodec{}
}

// GzipCodec stores snapshots as gzip-compressed canonical JSON.
type GzipCodec struct{}

func (c *GzipCodec) Encode(doc *models.SnapshotDocument) ([]byte, string, error) {
	plain, err := json.Marshal(doc)
	if err != nil {
		return nil, "", fmt.Errorf("encoding snapshot: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(plain); err != nil {
		return nil, "", fmt.Errorf("compressing snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, "", fmt.Errorf("compressing snapshot: %w", err)
	}
	return buf.Bytes(), ContentTypeGzip, nil
}

func (c *GzipCodec) Decode(data []byte) (*models.SnapshotDocument, error) {
	if doc, err := decodePlain(data); err == nil {
		return doc, nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding snapshot blob: %w", err)
	}
	defer zr.Close()

	plain, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompressing snapshot blob: %w", err)
	}
	return decodePlain(plain)
}

func (c *GzipCodec) Ext() string      { return ExtGzip }
func (c *GzipCodec) Compressed() bool { return true }

// PassthroughCodec stores snapshots as plain canonical JSON. Decoding a
// compressed blob fails with common.ErrDecompressionUnavailable: fallback
// mode has no inflate transform.
type PassthroughCodec struct{}

func (c *PassthroughCodec) Encode(doc *models.SnapshotDocument) ([]byte, string, error) {
	plain, err := json.Marshal(doc)
	if err != nil {
		return nil, "", fmt.Errorf("encoding snapshot: %w", err)
	}
	return plain, ContentTypeJSON, nil
}

func (c *PassthroughCodec) Decode(data []byte) (*models.SnapshotDocument, error) {
	doc, err := decodePlain(data)
	if err != nil {
		return nil, fmt.Errorf("%w: blob is not plain JSON", common.ErrDecompressionUnavailable)
	}
	return doc, nil
}

func (c *PassthroughCodec) Ext() string      { return ExtJSON }
func (c *PassthroughCodec) Compressed() bool { return false }

func decodePlain(data []byte) (*models.SnapshotDocument, error) {
	doc := &models.SnapshotDocument{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}
