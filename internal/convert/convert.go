// Package convert holds the pluggable per-resource decoders. The extraction
// pipeline offers each item to the registered converters in order and falls
// back to a raw dump when none of them claims it.
package convert

import (
	"github.com/JeanxPereira/recap-unpacker/internal/binstream"
	"github.com/JeanxPereira/recap-unpacker/internal/dbpf"
)

// Converter decodes one family of resources, selected by key.
//
// Decode reads the payload from a memory-backed stream and writes its output
// under outputDir. It returns whether it produced output; (false, nil) hands
// the item back to the pipeline for the next converter or the raw dump.
type Converter interface {
	Matches(key dbpf.ResourceKey) bool
	Decode(s *binstream.Stream, outputDir string, key dbpf.ResourceKey) (bool, error)
}
