// Package pttest builds synthetic torch .pt archives for tests.
//
// The archives follow the same layout torch.save produces for a single
// dense tensor: a zip file holding <prefix>/data.pkl, <prefix>/byteorder,
// <prefix>/version and the raw storage under <prefix>/data/<key>. Fields
// on Archive override individual records to produce malformed payloads.
package pttest

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"math"
)

// Archive describes a synthetic tensor archive. The zero value of most
// fields selects what a healthy torch.save output would contain.
type Archive struct {
	// Prefix is the top-level directory inside the zip. Defaults to "archive".
	Prefix string

	// DType is the torch storage class name. Defaults to "FloatStorage".
	DType string

	// Key is the storage record key. Defaults to "0".
	Key string

	// Shape is the declared tensor shape.
	Shape []int

	// Stride overrides the declared stride. Defaults to C-contiguous.
	Stride []int

	// Offset overrides the declared storage offset. Defaults to 0.
	Offset int

	// Data holds the tensor elements in row-major order.
	Data []float32

	// Numel overrides the element count declared in the persistent id.
	// Zero means len(Data).
	Numel int

	// StorageBytes overrides the raw storage record.
	StorageBytes []byte

	// PickleBytes overrides the data.pkl record entirely.
	PickleBytes []byte

	// ByteOrder overrides the byteorder record. Defaults to "little".
	ByteOrder string
}

// Bytes assembles the archive.
func (a Archive) Bytes() []byte {
	prefix := a.Prefix
	if prefix == "" {
		prefix = "archive"
	}
	key := a.Key
	if key == "" {
		key = "0"
	}
	order := a.ByteOrder
	if order == "" {
		order = "little"
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	write := func(name string, data []byte) {
		w, err := zw.Create(prefix + "/" + name)
		if err != nil {
			panic(err)
		}
		if _, err := w.Write(data); err != nil {
			panic(err)
		}
	}

	write("data.pkl", a.pickle(key))
	write("byteorder", []byte(order))
	write("version", []byte("3\n"))
	write("data/"+key, a.storage())

	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func (a Archive) pickle(key string) []byte {
	if a.PickleBytes != nil {
		return a.PickleBytes
	}

	dtype := a.DType
	if dtype == "" {
		dtype = "FloatStorage"
	}
	numel := a.Numel
	if numel == 0 {
		numel = len(a.Data)
	}
	stride := a.Stride
	if stride == nil {
		stride = make([]int, len(a.Shape))
		acc := 1
		for i := len(a.Shape) - 1; i >= 0; i-- {
			stride[i] = acc
			acc *= a.Shape[i]
		}
	}

	var b bytes.Buffer
	b.Write([]byte{0x80, 0x02}) // PROTO 2

	global := func(module, name string) {
		b.WriteByte('c')
		b.WriteString(module + "\n" + name + "\n")
	}
	str := func(s string) {
		b.WriteByte('X')
		binary.Write(&b, binary.LittleEndian, uint32(len(s)))
		b.WriteString(s)
	}
	num := func(n int) {
		b.WriteByte('J')
		binary.Write(&b, binary.LittleEndian, int32(n))
	}
	tuple := func(dims []int) {
		b.WriteByte('(')
		for _, d := range dims {
			num(d)
		}
		b.WriteByte('t')
	}

	global("torch._utils", "_rebuild_tensor_v2")
	b.WriteByte('(') // args

	b.WriteByte('(') // persistent id tuple
	str("storage")
	global("torch", dtype)
	str(key)
	str("cpu")
	num(numel)
	b.WriteByte('t')
	b.WriteByte('Q') // BINPERSID

	num(a.Offset)
	tuple(a.Shape)
	tuple(stride)
	b.WriteByte(0x89) // requires_grad = False

	global("collections", "OrderedDict")
	b.WriteByte(')') // empty tuple
	b.WriteByte('R') // backward hooks

	b.WriteByte('t')
	b.WriteByte('R')
	b.WriteByte('.')
	return b.Bytes()
}

func (a Archive) storage() []byte {
	if a.StorageBytes != nil {
		return a.StorageBytes
	}
	out := make([]byte, len(a.Data)*4)
	for i, v := range a.Data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}
