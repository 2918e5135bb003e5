package arena

import "unsafe"

// unsafePointer returns the address of a byte slice's backing array. Kept in
// its own tiny file since it's the only place in the package that reaches for
// package unsafe.
func unsafePointer(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}
