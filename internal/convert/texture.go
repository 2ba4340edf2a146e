package convert

import (
	"encoding/binary"
	"fmt"
	"image"
	"path/filepath"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/mauserzjeh/dxt"

	"github.com/JeanxPereira/recap-unpacker/internal/binstream"
	"github.com/JeanxPereira/recap-unpacker/internal/dbpf"
	"github.com/JeanxPereira/recap-unpacker/internal/names"
	"github.com/JeanxPereira/recap-unpacker/internal/utils"
)

// Texture resource type hashes.
const (
	TypeRaster = 0xED0922C2 // "raster"
	TypeDDS    = 0x17952E6C // "dds"
)

// DDS pixel format flags.
const (
	ddsPixelFourCC = 0x04
	ddsPixelRGB    = 0x40
)

// TextureConverter decodes DDS-framed texture resources to PNG. DXT1 and
// DXT5 surfaces are decompressed; uncompressed 32-bit BGRA is converted
// inline. Other surface formats are handed back for the raw dump.
type TextureConverter struct {
	registry *names.Registry
}

func NewTextureConverter(registry *names.Registry) *TextureConverter {
	return &TextureConverter{registry: registry}
}

func (c *TextureConverter) Matches(key dbpf.ResourceKey) bool {
	return key.Type == TypeRaster || key.Type == TypeDDS
}

func (c *TextureConverter) Decode(s *binstream.Stream, outputDir string, key dbpf.ResourceKey) (bool, error) {
	le := binary.LittleEndian

	magic, err := s.ReadString(4)
	if err != nil {
		return false, fmt.Errorf("texture %s: %w", key, err)
	}
	if magic != "DDS " {
		// Not a DDS frame after all; let the raw dump keep the bytes.
		return false, nil
	}
	headerSize, err := s.ReadUint32(le)
	if err != nil {
		return false, fmt.Errorf("texture %s: header size: %w", key, err)
	}
	if headerSize != 124 {
		return false, fmt.Errorf("texture %s: unexpected DDS header size %d", key, headerSize)
	}
	s.Skip(4) // surface flags
	height, err := s.ReadUint32(le)
	if err != nil {
		return false, fmt.Errorf("texture %s: height: %w", key, err)
	}
	width, err := s.ReadUint32(le)
	if err != nil {
		return false, fmt.Errorf("texture %s: width: %w", key, err)
	}
	// pitch, depth, mip count, 11 reserved dwords, pixel format size
	s.Skip(12 + 44 + 4)
	pixelFlags, err := s.ReadUint32(le)
	if err != nil {
		return false, fmt.Errorf("texture %s: pixel flags: %w", key, err)
	}
	fourCC, err := s.ReadString(4)
	if err != nil {
		return false, fmt.Errorf("texture %s: fourcc: %w", key, err)
	}
	s.Skip(20 + 20) // masks, caps, reserved

	w, h := int(width), int(height)
	if w <= 0 || h <= 0 {
		return false, fmt.Errorf("texture %s: bad dimensions %dx%d", key, w, h)
	}
	blocksW := (w + 3) / 4
	blocksH := (h + 3) / 4

	var pix []byte
	switch {
	case pixelFlags&ddsPixelFourCC != 0 && fourCC == "DXT1":
		data, err := s.ReadBytes(blocksW * blocksH * 8)
		if err != nil {
			return false, fmt.Errorf("texture %s: DXT1 data: %w", key, err)
		}
		pix, err = dxt.DecodeDXT1(data, uint(w), uint(h))
		if err != nil {
			return false, fmt.Errorf("texture %s: DXT1 decode: %w", key, err)
		}
	case pixelFlags&ddsPixelFourCC != 0 && fourCC == "DXT5":
		data, err := s.ReadBytes(blocksW * blocksH * 16)
		if err != nil {
			return false, fmt.Errorf("texture %s: DXT5 data: %w", key, err)
		}
		pix, err = dxt.DecodeDXT5(data, uint(w), uint(h))
		if err != nil {
			return false, fmt.Errorf("texture %s: DXT5 decode: %w", key, err)
		}
	case pixelFlags&ddsPixelRGB != 0:
		data, err := s.ReadBytes(w * h * 4)
		if err != nil {
			return false, fmt.Errorf("texture %s: BGRA data: %w", key, err)
		}
		pix = data
		swapRB(pix)
	default:
		utils.Debug("texture %s: unsupported surface (flags 0x%X, fourcc %q), keeping raw", key, pixelFlags, fourCC)
		return false, nil
	}

	img := &image.RGBA{
		Pix:    pix,
		Stride: w * 4,
		Rect:   image.Rect(0, 0, w, h),
	}
	out := filepath.Join(outputDir, c.registry.FileName(key.Instance)+".png")
	if err := imgio.Save(out, img, imgio.PNGEncoder()); err != nil {
		return false, fmt.Errorf("texture %s: save png: %w", key, err)
	}
	utils.Debug("texture %s -> %s (%dx%d)", key, out, w, h)
	return true, nil
}

func swapRB(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
}
