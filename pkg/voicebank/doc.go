// Package voicebank downloads pretrained Kokoro voice embeddings from a
// Hugging Face mirror and maintains the local voice registry document.
//
// Each voice is a torch .pt tensor of shape 511x1x256 hosted under
// hexgrad/Kokoro-82M. A fetch run downloads every requested voice in list
// order, validates the tensor via torchpt, and writes one compact JSON
// document mapping voice id to nested float arrays:
//
//	fetcher := voicebank.NewFetcher()
//	reg, err := fetcher.FetchAll(ctx, voicebank.DefaultVoices)
//	if err != nil {
//	    return err
//	}
//	if err := reg.WriteFile("data/voices.json"); err != nil {
//	    return err
//	}
//
// A failed voice aborts the whole batch by default so a partial registry is
// never written silently; WithKeepPartial restores skip-and-continue.
package voicebank
