// Package torchpt decodes tensors from the PyTorch zip serialization format
// (the format produced by torch.save since PyTorch 1.6).
//
// The decoder is deliberately narrow: it understands exactly the structure
// torch.save emits for a single dense tensor and rejects everything else.
// Declared dtype, shape, stride and storage length are validated before any
// payload byte is trusted, so a truncated download or an HTML error page
// saved as a .pt file fails with a *FormatError instead of producing garbage
// data.
//
//	t, err := torchpt.Load("voices/af.pt")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(t.Shape) // [511 1 256]
//
// Pickle is a full programming language for object graphs; this package
// implements only the opcode subset a plain tensor needs. Unknown opcodes,
// unknown globals and unexpected persistent ids are decode errors, never
// silently skipped.
package torchpt
