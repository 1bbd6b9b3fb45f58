// Package memory implements the memory character driver: seven minor
// devices that expose regions of memory through a scatter/gather interface.
//
//	minor  name   backing
//	0      ram    RAM disk allocated on request, at most once
//	1      mem    raw physical memory, via address translation
//	2      kmem   kernel memory, via an installed segment
//	3      null   data sink, reads hit end of file at once
//	4      boot   boot image, via an installed segment
//	5      zero   endless zero bytes, writes are discarded
//	6      imgrd  ramdisk image linked into the binary
//
// A Driver is not safe for concurrent use. The request framework in package
// driver serializes calls into it.
//
// Failures the caller can do something about come back as *types.Error of a
// non-fatal kind. A copy that fails on ram, kmem, boot or mem, or a record
// that cannot be made durable, returns an error for which types.IsFatal is
// true: the driver's view of memory can no longer be trusted and the serving
// loop stops the process.
package memory
