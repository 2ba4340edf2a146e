package extract

import (
	"fmt"
	"path/filepath"

	"github.com/JeanxPereira/recap-unpacker/internal/binstream"
	"github.com/JeanxPereira/recap-unpacker/internal/dbpf"
	"github.com/JeanxPereira/recap-unpacker/internal/utils"
)

// EmbeddedPackageType marks a resource whose payload is itself a package
// stream.
const EmbeddedPackageType = 0x7198AD17 // "package"

// PackageConverter re-extracts embedded packages into a subdirectory of the
// item's group directory. It holds the options by pointer so the converter
// list can include the converter itself, making nesting recursive.
type PackageConverter struct {
	opts *Options
}

func NewPackageConverter(opts *Options) *PackageConverter {
	return &PackageConverter{opts: opts}
}

func (c *PackageConverter) Matches(key dbpf.ResourceKey) bool {
	return key.Type == EmbeddedPackageType
}

func (c *PackageConverter) Decode(s *binstream.Stream, outputDir string, key dbpf.ResourceKey) (bool, error) {
	dest := filepath.Join(outputDir, c.opts.Registry.FileName(key.Instance)+".package")
	sub := New(*c.opts)
	res, err := sub.ExtractStream(s, dest)
	if err != nil {
		return false, fmt.Errorf("embedded package: %w", err)
	}
	if len(res.Failures) > 0 {
		utils.Warn("embedded package %s: %d item(s) failed", key, len(res.Failures))
	}
	utils.Debug("embedded package %s -> %s (%d written)", key, dest, res.Written)
	return true, nil
}
