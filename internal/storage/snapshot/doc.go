// Package snapshot reads and writes point-in-time dumps of the key space.
//
// A snapshot is always rewritten in full. Layout:
//
//	"REDIS" [version:4 BE]
//	metadata ... 0xFE           (0xFA aux pairs; the reader skips to 0xFE)
//	0xFB [size hint:1] [expiry hint:1]
//	entries:
//	  0x00                               key  value
//	  0xFC [unix ms:8 LE] [reserved:1]   key  value
//	  0xFD [unix s:4 LE]  [reserved:1]   key  value
//	0xFF
//
// Keys and values carry a 1-byte length prefix, so neither may exceed 255
// bytes. Encode rejects such key spaces with ErrStringTooLong.
package snapshot
