// Package imagehash computes and compares perceptual hashes for still
// images (spec.md §4.4, component C4): dHash as the primary signal, pHash
// behind an opt-in flag per the spec's design note that pHash was rarely
// computed in the source.
//
// Grounded on _examples/other_examples' gavinmcnair-pictureprocess
// deduplicator.go, which decodes with github.com/disintegration/imaging and
// hashes with github.com/corona10/goimagehash — the same two libraries used
// here, rather than hand-rolling DCT/bit-grid math the ecosystem already
// provides.
package imagehash

import (
	// Decoder registrations beyond the stdlib's jpeg/png/gif, so image.Decode
	// and imaging.Decode can read the wider photo-extension set this module
	// advertises (spec.md §6). Grounded on the kthornbloom-photog and
	// gavinmcnair-pictureprocess manifests, both of which pull in
	// golang.org/x/image for exactly this purpose.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)
