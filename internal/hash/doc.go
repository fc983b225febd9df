// Package hash provides the CRC32-Castagnoli checksum used by the index
// format and by S3 upload integrity checks.
//
//	checksum := hash.CRC32C(data)
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	checksum := h.Sum32()
package hash
