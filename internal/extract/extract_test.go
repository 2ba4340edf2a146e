package extract

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/JeanxPereira/recap-unpacker/internal/binstream"
	"github.com/JeanxPereira/recap-unpacker/internal/convert"
	"github.com/JeanxPereira/recap-unpacker/internal/dbpf"
	"github.com/JeanxPereira/recap-unpacker/internal/names"
)

type entry struct {
	key        dbpf.ResourceKey
	data       []byte // decompressed content
	compressed bool
	onDisk     []byte // stored bytes when compressed
}

func buildArchive(t *testing.T, path string, entries []entry) {
	t.Helper()
	s := binstream.NewMemory()
	f := dbpf.New()
	if err := f.WriteHeader(s); err != nil {
		t.Fatalf("reserve header: %v", err)
	}
	for _, e := range entries {
		stored := e.data
		if e.compressed {
			stored = e.onDisk
		}
		off := s.PositionAbsolute()
		if err := s.WriteBytes(stored); err != nil {
			t.Fatalf("write payload: %v", err)
		}
		f.Index.Items = append(f.Index.Items, dbpf.Item{
			Key:            e.key,
			Compressed:     e.compressed,
			ChunkOffset:    uint64(off),
			MemSize:        uint32(len(e.data)),
			CompressedSize: uint32(len(stored)),
			Saved:          true,
		})
	}
	if err := f.WriteAll(s); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	raw, err := s.Bytes()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}

type stubConverter struct {
	match   func(dbpf.ResourceKey) bool
	produce bool
	err     error
	calls   int
}

func (c *stubConverter) Matches(key dbpf.ResourceKey) bool { return c.match(key) }

func (c *stubConverter) Decode(s *binstream.Stream, outputDir string, key dbpf.ResourceKey) (bool, error) {
	c.calls++
	return c.produce, c.err
}

func TestRawDumpHexFallback(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "test.package")
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	buildArchive(t, archive, []entry{
		{key: dbpf.ResourceKey{Type: 0x01, Group: 0x02, Instance: 0x03}, data: payload},
	})

	dest := filepath.Join(dir, "out")
	p := New(Options{Registry: names.NewRegistry()})
	res, err := p.ExtractAll([]string{archive}, dest)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Written != 1 || len(res.Failures) != 0 {
		t.Fatalf("result = %+v", res)
	}

	out := filepath.Join(dest, "#00000002", "#00000003.#00000001")
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = % X", got)
	}
}

func TestMultiArchiveSuppression(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.package")
	second := filepath.Join(dir, "b.package")
	// Equivalent keys (same type and instance) in different groups: the
	// first archive wins across the batch.
	buildArchive(t, first, []entry{
		{key: dbpf.ResourceKey{Type: 0x10, Group: 0xAA, Instance: 0x99}, data: []byte("first")},
	})
	buildArchive(t, second, []entry{
		{key: dbpf.ResourceKey{Type: 0x10, Group: 0xBB, Instance: 0x99}, data: []byte("second")},
	})

	dest := filepath.Join(dir, "out")
	p := New(Options{Registry: names.NewRegistry()})
	res, err := p.ExtractAll([]string{first, second}, dest)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Written != 1 || res.Skipped != 1 {
		t.Fatalf("result = %+v", res)
	}
	if _, err := os.Stat(filepath.Join(dest, "#000000aa", "#00000099.#00000010")); err != nil {
		t.Errorf("first archive's item missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "#000000bb", "#00000099.#00000010")); err == nil {
		t.Error("second archive's duplicate was written")
	}
}

func TestSingleArchiveKeepsEquivalentItems(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "a.package")
	buildArchive(t, archive, []entry{
		{key: dbpf.ResourceKey{Type: 0x10, Group: 0xAA, Instance: 0x99}, data: []byte("one")},
		{key: dbpf.ResourceKey{Type: 0x10, Group: 0xBB, Instance: 0x99}, data: []byte("two")},
	})

	dest := filepath.Join(dir, "out")
	res, err := New(Options{Registry: names.NewRegistry()}).ExtractAll([]string{archive}, dest)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Written != 2 {
		t.Fatalf("result = %+v", res)
	}
}

func TestItemFailureIsolation(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "bad.package")
	badKey := dbpf.ResourceKey{Type: 1, Group: 2, Instance: 3}
	buildArchive(t, archive, []entry{
		{key: badKey, data: make([]byte, 16), compressed: true, onDisk: []byte{0xDE, 0xAD}},
		{key: dbpf.ResourceKey{Type: 1, Group: 2, Instance: 4}, data: []byte("survivor")},
	})

	dest := filepath.Join(dir, "out")
	res, err := New(Options{Registry: names.NewRegistry()}).ExtractAll([]string{archive}, dest)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Written != 1 {
		t.Fatalf("result = %+v", res)
	}
	if _, ok := res.Failures[badKey]; !ok {
		t.Fatal("failure not recorded against the bad item")
	}
	got, err := os.ReadFile(filepath.Join(dest, "#00000002", "#00000004.#00000001"))
	if err != nil {
		t.Fatalf("subsequent item missing: %v", err)
	}
	if string(got) != "survivor" {
		t.Fatalf("payload = %q", got)
	}
}

func TestAutoGeneratedSkip(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "auto.package")
	reg := names.NewRegistry()
	reg.AddName("auto_cue_01")
	reg.AddName("handmade_cue")

	buildArchive(t, archive, []entry{
		{key: dbpf.ResourceKey{Type: 5, Group: autoGeneratedGroup, Instance: names.Hash("auto_cue_01")}, data: []byte("skipme")},
		{key: dbpf.ResourceKey{Type: 5, Group: autoGeneratedGroup, Instance: names.Hash("handmade_cue")}, data: []byte("keepme")},
	})

	dest := filepath.Join(dir, "out")
	res, err := New(Options{Registry: reg}).ExtractAll([]string{archive}, dest)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Written != 1 || res.Skipped != 1 {
		t.Fatalf("result = %+v", res)
	}
	groupDir := filepath.Join(dest, reg.FileName(autoGeneratedGroup))
	if _, err := os.Stat(filepath.Join(groupDir, "handmade_cue.#00000005")); err != nil {
		t.Errorf("kept item missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(groupDir, "auto_cue_01.#00000005")); err == nil {
		t.Error("auto-generated item was written")
	}
}

func TestProjectNamesFeeding(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "named.package")
	reg := names.NewRegistry()

	pretty := "shiny_model"
	buildArchive(t, archive, []entry{
		// The item comes before the names entry in index order; the names
		// scan still runs first.
		{key: dbpf.ResourceKey{Type: 7, Group: 0x42, Instance: names.Hash(pretty)}, data: []byte("content")},
		{key: dbpf.ResourceKey{Type: 9, Group: projectNamesGroup, Instance: projectNamesInstance}, data: []byte(pretty + "\n")},
	})

	dest := filepath.Join(dir, "out")
	res, err := New(Options{Registry: reg}).ExtractAll([]string{archive}, dest)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(res.Failures) != 0 {
		t.Fatalf("failures: %v", res.Failures)
	}
	if _, err := os.Stat(filepath.Join(dest, "#00000042", pretty+".#00000007")); err != nil {
		t.Errorf("project name not applied: %v", err)
	}
	// The overlay is scoped to the archive: after extraction the name is
	// gone again.
	if got := reg.FileName(names.Hash(pretty)); got == pretty {
		t.Error("project names overlay survived the archive")
	}
}

func TestConverterDispatchOrder(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "conv.package")
	key := dbpf.ResourceKey{Type: 0x77, Group: 1, Instance: 2}
	buildArchive(t, archive, []entry{{key: key, data: []byte("payload")}})

	declined := &stubConverter{match: func(k dbpf.ResourceKey) bool { return k.Type == 0x77 }, produce: false}
	accepted := &stubConverter{match: func(k dbpf.ResourceKey) bool { return k.Type == 0x77 }, produce: true}
	never := &stubConverter{match: func(k dbpf.ResourceKey) bool { return k.Type == 0x77 }, produce: true}

	dest := filepath.Join(dir, "out")
	res, err := New(Options{
		Registry:   names.NewRegistry(),
		Converters: []convert.Converter{declined, accepted, never},
	}).ExtractAll([]string{archive}, dest)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Converted != 1 || res.Written != 1 {
		t.Fatalf("result = %+v", res)
	}
	if declined.calls != 1 || accepted.calls != 1 {
		t.Fatalf("dispatch order wrong: %d/%d", declined.calls, accepted.calls)
	}
	if never.calls != 0 {
		t.Fatal("dispatch did not short-circuit after the first producer")
	}
	// A converter that produced output suppresses the raw dump.
	if _, err := os.Stat(filepath.Join(dest, "#00000001", "#00000002.#00000077")); err == nil {
		t.Error("raw file written despite conversion")
	}
}

func TestConverterErrorIsItemFailure(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "conv.package")
	key := dbpf.ResourceKey{Type: 0x77, Group: 1, Instance: 2}
	buildArchive(t, archive, []entry{
		{key: key, data: []byte("payload")},
		{key: dbpf.ResourceKey{Type: 0x78, Group: 1, Instance: 3}, data: []byte("fine")},
	})

	failing := &stubConverter{
		match:   func(k dbpf.ResourceKey) bool { return k.Type == 0x77 },
		err:     os.ErrInvalid,
		produce: false,
	}
	dest := filepath.Join(dir, "out")
	res, err := New(Options{
		Registry:   names.NewRegistry(),
		Converters: []convert.Converter{failing},
	}).ExtractAll([]string{archive}, dest)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if _, ok := res.Failures[key]; !ok {
		t.Fatal("converter error not recorded")
	}
	if res.Written != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestCatalogNeverConverts(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "cat.package")
	key := dbpf.ResourceKey{Type: catalogType, Group: catalogGroup, Instance: 0x11}
	buildArchive(t, archive, []entry{{key: key, data: []byte("catalog data")}})

	greedy := &stubConverter{match: func(dbpf.ResourceKey) bool { return true }, produce: true}
	dest := filepath.Join(dir, "out")
	res, err := New(Options{
		Registry:   names.NewRegistry(),
		Converters: []convert.Converter{greedy},
	}).ExtractAll([]string{archive}, dest)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if greedy.calls != 0 {
		t.Fatal("catalog resource was offered to a converter")
	}
	if res.Written != 1 || res.Converted != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestFilter(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "f.package")
	buildArchive(t, archive, []entry{
		{key: dbpf.ResourceKey{Type: 1, Group: 1, Instance: 1}, data: []byte("a")},
		{key: dbpf.ResourceKey{Type: 2, Group: 1, Instance: 2}, data: []byte("b")},
	})

	dest := filepath.Join(dir, "out")
	res, err := New(Options{
		Registry: names.NewRegistry(),
		Filter:   func(k dbpf.ResourceKey) bool { return k.Type == 2 },
	}).ExtractAll([]string{archive}, dest)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Written != 1 || res.Skipped != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestEmbeddedPackage(t *testing.T) {
	dir := t.TempDir()

	// Inner package, built standalone and embedded as a payload.
	inner := filepath.Join(dir, "inner.package")
	buildArchive(t, inner, []entry{
		{key: dbpf.ResourceKey{Type: 5, Group: 6, Instance: 7}, data: []byte("nested")},
	})
	innerBytes, err := os.ReadFile(inner)
	if err != nil {
		t.Fatal(err)
	}

	outer := filepath.Join(dir, "outer.package")
	buildArchive(t, outer, []entry{
		{key: dbpf.ResourceKey{Type: EmbeddedPackageType, Group: 0x20, Instance: 0x21}, data: innerBytes},
	})

	opts := Options{Registry: names.NewRegistry()}
	opts.Converters = append(opts.Converters, NewPackageConverter(&opts))

	dest := filepath.Join(dir, "out")
	res, err := New(opts).ExtractAll([]string{outer}, dest)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Converted != 1 {
		t.Fatalf("result = %+v", res)
	}
	nested := filepath.Join(dest, "#00000020", "#00000021.package", "#00000006", "#00000007.#00000005")
	got, err := os.ReadFile(nested)
	if err != nil {
		t.Fatalf("nested item missing: %v", err)
	}
	if string(got) != "nested" {
		t.Fatalf("nested payload = %q", got)
	}
}

func TestEmbeddedPackageNegativeOffsetIsolated(t *testing.T) {
	dir := t.TempDir()

	// An embedded DBBF stream whose only item points before the start of its
	// data region. The extraction must record the item failure and finish;
	// a corrupt nested package never takes down the outer run.
	s := binstream.NewMemory()
	inner := dbpf.New()
	inner.Variant = dbpf.Alternate
	negOff := int64(-8)
	inner.Index.Items = append(inner.Index.Items, dbpf.Item{
		Key:         dbpf.ResourceKey{Type: 5, Group: 6, Instance: 7},
		ChunkOffset: uint64(negOff),
		MemSize:     4, CompressedSize: 4,
		Saved: true,
	})
	if err := inner.WriteAll(s); err != nil {
		t.Fatalf("write inner: %v", err)
	}
	innerBytes, err := s.Bytes()
	if err != nil {
		t.Fatal(err)
	}

	outer := filepath.Join(dir, "outer.package")
	buildArchive(t, outer, []entry{
		{key: dbpf.ResourceKey{Type: EmbeddedPackageType, Group: 0x20, Instance: 0x21}, data: innerBytes},
	})

	opts := Options{Registry: names.NewRegistry()}
	opts.Converters = append(opts.Converters, NewPackageConverter(&opts))

	dest := filepath.Join(dir, "out")
	res, err := New(opts).ExtractAll([]string{outer}, dest)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Converted != 1 {
		t.Fatalf("result = %+v", res)
	}
	nested := filepath.Join(dest, "#00000020", "#00000021.package", "#00000006", "#00000007.#00000005")
	if _, err := os.Stat(nested); err == nil {
		t.Fatal("corrupt nested item produced output")
	}
}
