// Package imgrd carries the ramdisk image linked into the driver binary.
package imgrd

import _ "embed"

// Image is the in-image ramdisk served by the imgrd minor device.
//
//go:embed image.bin
var Image []byte
