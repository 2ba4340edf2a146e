// Package extract walks a package's index and produces the output tree:
// each item is materialized, offered to the converters, and written raw when
// none of them claims it. One bad item never stops the archive.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JeanxPereira/recap-unpacker/internal/binstream"
	"github.com/JeanxPereira/recap-unpacker/internal/convert"
	"github.com/JeanxPereira/recap-unpacker/internal/dbpf"
	"github.com/JeanxPereira/recap-unpacker/internal/names"
	"github.com/JeanxPereira/recap-unpacker/internal/refpack"
	"github.com/JeanxPereira/recap-unpacker/internal/utils"
)

// Well-known resource identities.
const (
	// The embedded project-names resource: registry-format text whose names
	// every other item of the same package may resolve through.
	projectNamesGroup    = 0x9C9059AE // "sporemaster"
	projectNamesInstance = 0xCC2F616F // "names"

	// The catalog resource is always written raw, even when a converter
	// would match it.
	catalogType  = 0x64233B16 // "catalog"
	catalogGroup = 0x2A3CE5BA // "global~"

	// Auto-generated audio cues are skipped outright, payload unread.
	autoGeneratedGroup = 0xCFA31D1F // "audio_generated"
	autoGeneratedName  = "auto_"
)

// Options configures a Pipeline. Registry is required; Decompress defaults
// to RefPack.
type Options struct {
	Registry   *names.Registry
	Converters []convert.Converter
	Decompress dbpf.Decompressor
	// Filter skips items it rejects. Nil accepts everything.
	Filter func(dbpf.ResourceKey) bool
}

// Result accumulates the outcome of one extraction run.
type Result struct {
	Written   int
	Converted int
	Skipped   int
	Failures  map[dbpf.ResourceKey]error
}

func newResult() *Result {
	return &Result{Failures: make(map[dbpf.ResourceKey]error)}
}

func (r *Result) fail(key dbpf.ResourceKey, err error) {
	r.Failures[key] = err
	utils.Warn("item %s: %v", key, err)
}

func (r *Result) merge(o *Result) {
	r.Written += o.Written
	r.Converted += o.Converted
	r.Skipped += o.Skipped
	for k, v := range o.Failures {
		r.Failures[k] = v
	}
}

// equivKey is the duplicate-suppression identity: type and instance, group
// ignored.
type equivKey struct {
	typ, instance uint32
}

// Pipeline extracts one or more packages into a destination tree. It is
// single-use state for one extraction call; run concurrent extractions with
// separate pipelines, streams and registries.
type Pipeline struct {
	opts    Options
	written map[equivKey]bool
	dedupe  bool
}

func New(opts Options) *Pipeline {
	if opts.Decompress == nil {
		opts.Decompress = refpack.Decompress
	}
	return &Pipeline{opts: opts, written: make(map[equivKey]bool)}
}

// ExtractAll extracts every input archive into destDir. With more than one
// input, items whose keys are equivalent to something already written are
// suppressed; the first archive wins.
func (p *Pipeline) ExtractAll(inputs []string, destDir string) (*Result, error) {
	p.dedupe = len(inputs) > 1
	total := newResult()
	for _, input := range inputs {
		res, err := p.ExtractFile(input, destDir)
		if err != nil {
			return total, fmt.Errorf("extract %s: %w", input, err)
		}
		total.merge(res)
	}
	return total, nil
}

// ExtractFile opens one archive file and extracts it.
func (p *Pipeline) ExtractFile(path, destDir string) (*Result, error) {
	s, err := binstream.Open(path)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	utils.Info("extracting %s", path)
	return p.ExtractStream(s, destDir)
}

// ExtractStream extracts an already-open package stream into destDir. A
// header or index decode failure is fatal for the archive; per-item
// failures are recorded in the result and processing continues.
func (p *Pipeline) ExtractStream(s *binstream.Stream, destDir string) (*Result, error) {
	pkg := dbpf.New()
	if err := pkg.ReadAll(s); err != nil {
		return nil, err
	}
	utils.Debug("%s package, %d items, index at 0x%X", pkg.Variant, len(pkg.Index.Items), pkg.IndexOffset)

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	res := newResult()
	reg := p.opts.Registry

	// The project-names overlay is scoped to this archive. Swapping instead
	// of clearing keeps a parent archive's overlay intact while an embedded
	// package is re-extracted.
	prev := reg.SwapProjectNames(nil)
	defer reg.SwapProjectNames(prev)
	p.feedProjectNames(s, pkg, res)

	for _, it := range pkg.Index.Items {
		key := it.Key
		if p.opts.Filter != nil && !p.opts.Filter(key) {
			res.Skipped++
			continue
		}
		if p.dedupe && p.written[equivKey{key.Type, key.Instance}] {
			res.Skipped++
			continue
		}

		groupName := reg.FileName(key.Group)
		instName := reg.FileName(key.Instance)
		if key.Group == autoGeneratedGroup && strings.HasPrefix(instName, autoGeneratedName) {
			res.Skipped++
			continue
		}

		groupDir := filepath.Join(destDir, groupName)
		if err := os.MkdirAll(groupDir, 0755); err != nil {
			return res, fmt.Errorf("create group directory %s: %w", groupDir, err)
		}

		payload, err := it.Payload(s, p.opts.Decompress)
		if err != nil {
			res.fail(key, err)
			continue
		}

		produced, err := p.dispatch(payload, groupDir, key)
		if err != nil {
			res.fail(key, err)
			continue
		}
		if produced {
			res.Converted++
		} else {
			out := filepath.Join(groupDir, instName+"."+reg.TypeName(key.Type))
			if err := os.WriteFile(out, payload, 0644); err != nil {
				res.fail(key, err)
				continue
			}
			utils.Debug("wrote %s", out)
		}
		res.Written++
		p.written[equivKey{key.Type, key.Instance}] = true
	}
	return res, nil
}

// feedProjectNames scans the decoded items for the project-names resource
// and feeds its text into the registry overlay before any name is resolved.
func (p *Pipeline) feedProjectNames(s *binstream.Stream, pkg *dbpf.File, res *Result) {
	for _, it := range pkg.Index.Items {
		if it.Key.Group != projectNamesGroup || it.Key.Instance != projectNamesInstance {
			continue
		}
		payload, err := it.Payload(s, p.opts.Decompress)
		if err != nil {
			res.fail(it.Key, fmt.Errorf("project names: %w", err))
			return
		}
		if err := p.opts.Registry.AddProjectNames(string(payload)); err != nil {
			res.fail(it.Key, err)
			return
		}
		utils.Debug("loaded project names from %s", it.Key)
		return
	}
}

// dispatch offers the payload to the converters in registration order. The
// catalog resource never converts. The first converter that produces output
// wins; a converter error is the item's error.
func (p *Pipeline) dispatch(payload []byte, groupDir string, key dbpf.ResourceKey) (bool, error) {
	if key.Type == catalogType && key.Group == catalogGroup {
		return false, nil
	}
	for _, c := range p.opts.Converters {
		if !c.Matches(key) {
			continue
		}
		ms := binstream.NewMemoryBuffer(payload)
		produced, err := c.Decode(ms, groupDir, key)
		if err != nil {
			return false, err
		}
		if produced {
			return true, nil
		}
	}
	return false, nil
}
