// Package plan serializes a resolved configuration into the execution plan
// handed to the training runtime.
package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"trainplan/internal/merge"
	"trainplan/internal/provenance"
	"trainplan/internal/source"
	"trainplan/internal/value"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat accepts json, yaml (or yml) and msgpack.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "msgpack", "mp":
		return FormatMsgpack, nil
	}
	return "", fmt.Errorf("unknown plan format %q (want json, yaml or msgpack)", s)
}

// Plan is a resolved configuration. It never carries provenance inside the
// value tree; Origins is a separate artifact.
type Plan struct {
	Root          *value.Block
	Origins       *provenance.Map
	SchemaVersion string
	// Digest is the SHA-256 of the canonical JSON encoding.
	Digest string
}

// New freezes cfg into a plan.
func New(cfg *merge.Config, schemaVersion string) *Plan {
	sum := sha256.Sum256(CanonicalJSON(cfg.Root))
	return &Plan{
		Root:          cfg.Root,
		Origins:       cfg.Origins,
		SchemaVersion: schemaVersion,
		Digest:        hex.EncodeToString(sum[:]),
	}
}

// Encode renders p in format f.
func (p *Plan) Encode(f Format) ([]byte, error) {
	switch f {
	case FormatJSON, "":
		return CanonicalJSON(p.Root), nil
	case FormatYAML:
		return encodeYAML(p.Root)
	case FormatMsgpack:
		return encodeMsgpack(p.Root)
	}
	return nil, fmt.Errorf("unknown plan format %q", f)
}

// WriteTo encodes p in format f to w.
func (p *Plan) WriteTo(w io.Writer, f Format) error {
	data, err := p.Encode(f)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}
	return nil
}

// ProvenanceReport lists "key<TAB>origin" for every key of the plan.
func (p *Plan) ProvenanceReport(fs *source.FileSet) string {
	return p.Origins.Report(fs)
}
