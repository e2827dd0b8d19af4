package torchpt

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// storageRef is a resolved persistent id pointing at a storage record
// inside the archive.
type storageRef struct {
	dtype string // torch storage class name, e.g. "FloatStorage"
	key   string // archive record key under <prefix>/data/
	numel int
}

// tensorStub is the output of torch._utils._rebuild_tensor_v2 before the
// storage bytes are attached.
type tensorStub struct {
	storage *storageRef
	offset  int
	size    []int
	stride  []int
}

// Load reads and validates a tensor from a .pt file on disk.
func Load(path string) (*Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return LoadReader(f, info.Size())
}

// LoadBytes decodes a tensor from an in-memory .pt payload.
func LoadBytes(data []byte) (*Tensor, error) {
	return LoadReader(bytes.NewReader(data), int64(len(data)))
}

// LoadReader decodes a tensor from a .pt archive.
func LoadReader(r io.ReaderAt, size int64) (*Tensor, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, formatErrf("not a torch zip archive: %v", err)
	}

	prefix, pickleFile, err := findPickle(zr)
	if err != nil {
		return nil, err
	}

	if err := checkByteOrder(zr, prefix); err != nil {
		return nil, err
	}

	stub, err := readStub(pickleFile)
	if err != nil {
		return nil, err
	}
	if err := validateStub(stub); err != nil {
		return nil, err
	}

	data, err := readStorage(zr, prefix, stub.storage)
	if err != nil {
		return nil, err
	}

	return &Tensor{Shape: stub.size, Data: data}, nil
}

// findPickle locates <prefix>data.pkl in the archive. torch names the top
// directory after the file it wrote, so the prefix is discovered rather
// than assumed.
func findPickle(zr *zip.Reader) (string, *zip.File, error) {
	for _, f := range zr.File {
		if f.Name == "data.pkl" || strings.HasSuffix(f.Name, "/data.pkl") {
			return strings.TrimSuffix(f.Name, "data.pkl"), f, nil
		}
	}
	return "", nil, formatErrf("archive has no data.pkl record")
}

// checkByteOrder rejects big-endian archives. The record is absent in older
// torch versions, which always wrote little-endian.
func checkByteOrder(zr *zip.Reader, prefix string) error {
	for _, f := range zr.File {
		if f.Name != prefix+"byteorder" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return formatErrf("read byteorder record: %v", err)
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return formatErrf("read byteorder record: %v", err)
		}
		if order := strings.TrimSpace(string(b)); order != "little" {
			return formatErrf("unsupported byte order %q", order)
		}
		return nil
	}
	return nil
}

func readStub(f *zip.File) (*tensorStub, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, formatErrf("read data.pkl: %v", err)
	}
	defer rc.Close()

	u := newUnpickler(rc)
	u.persistentLoad = loadStorageRef
	u.reduce = reduceTensor

	v, err := u.run()
	if err != nil {
		return nil, err
	}
	stub, ok := v.(*tensorStub)
	if !ok {
		return nil, formatErrf("archive payload is %T, not a tensor", v)
	}
	return stub, nil
}

// loadStorageRef resolves torch persistent ids of the form
// ('storage', <torch.FloatStorage>, key, location, numel).
func loadStorageRef(ref []any) (any, error) {
	if len(ref) < 5 {
		return nil, formatErrf("persistent id has %d fields, want 5", len(ref))
	}
	tag, _ := ref[0].(string)
	if tag != "storage" {
		return nil, formatErrf("persistent id tag %q not supported", tag)
	}
	class, ok := ref[1].(pyGlobal)
	if !ok || class.Module != "torch" || !strings.HasSuffix(class.Name, "Storage") {
		return nil, formatErrf("persistent id class %v is not a torch storage", ref[1])
	}
	key, ok := ref[2].(string)
	if !ok {
		return nil, formatErrf("storage key is %T, not a string", ref[2])
	}
	numel, ok := ref[4].(int)
	if !ok {
		return nil, formatErrf("storage element count is %T, not an int", ref[4])
	}
	return &storageRef{dtype: class.Name, key: key, numel: numel}, nil
}

// reduceTensor applies the only two callables a tensor pickle contains.
func reduceTensor(callable pyGlobal, args []any) (any, error) {
	switch {
	case callable.Module == "torch._utils" &&
		(callable.Name == "_rebuild_tensor_v2" || callable.Name == "_rebuild_tensor"):
		if len(args) < 4 {
			return nil, formatErrf("%s called with %d args, want at least 4", callable.Name, len(args))
		}
		storage, ok := args[0].(*storageRef)
		if !ok {
			return nil, formatErrf("tensor storage argument is %T", args[0])
		}
		offset, ok := args[1].(int)
		if !ok {
			return nil, formatErrf("tensor storage offset is %T", args[1])
		}
		size, err := intTuple(args[2], "size")
		if err != nil {
			return nil, err
		}
		stride, err := intTuple(args[3], "stride")
		if err != nil {
			return nil, err
		}
		return &tensorStub{storage: storage, offset: offset, size: size, stride: stride}, nil

	case callable.Module == "collections" && callable.Name == "OrderedDict":
		return map[any]any{}, nil
	}
	return nil, formatErrf("global %s.%s not supported", callable.Module, callable.Name)
}

func intTuple(v any, what string) ([]int, error) {
	tuple, ok := v.([]any)
	if !ok {
		return nil, formatErrf("tensor %s is %T, not a tuple", what, v)
	}
	out := make([]int, len(tuple))
	for i, e := range tuple {
		n, ok := e.(int)
		if !ok {
			return nil, formatErrf("tensor %s element is %T, not an int", what, e)
		}
		out[i] = n
	}
	return out, nil
}

// validateStub checks the declared geometry before the storage is read.
func validateStub(stub *tensorStub) error {
	if stub.storage.dtype != "FloatStorage" {
		return formatErrf("dtype torch.%s not supported, want FloatStorage", stub.storage.dtype)
	}
	if stub.offset != 0 {
		return formatErrf("non-zero storage offset %d not supported", stub.offset)
	}
	numel := 1
	for _, d := range stub.size {
		if d <= 0 {
			return formatErrf("invalid dimension %d in shape %v", d, stub.size)
		}
		numel *= d
	}
	if numel != stub.storage.numel {
		return formatErrf("shape %v implies %d elements, storage declares %d",
			stub.size, numel, stub.storage.numel)
	}
	if len(stub.stride) != len(stub.size) {
		return formatErrf("stride rank %d does not match shape rank %d",
			len(stub.stride), len(stub.size))
	}
	// Only contiguous tensors map 1:1 onto the storage bytes.
	want := 1
	for i := len(stub.size) - 1; i >= 0; i-- {
		if stub.stride[i] != want {
			return formatErrf("non-contiguous stride %v for shape %v", stub.stride, stub.size)
		}
		want *= stub.size[i]
	}
	return nil
}

func readStorage(zr *zip.Reader, prefix string, ref *storageRef) ([]float32, error) {
	name := prefix + "data/" + ref.key
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, formatErrf("read storage %s: %v", name, err)
		}
		defer rc.Close()

		raw, err := io.ReadAll(rc)
		if err != nil {
			return nil, formatErrf("read storage %s: %v", name, err)
		}
		if len(raw) != ref.numel*4 {
			return nil, formatErrf("storage %s holds %d bytes, want %d",
				name, len(raw), ref.numel*4)
		}

		data := make([]float32, ref.numel)
		for i := range data {
			data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return data, nil
	}
	return nil, formatErrf("archive has no storage record %s", name)
}
