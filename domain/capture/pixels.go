package capture

// bgraToRGBA swaps the blue and red channels of src into dst and forces the
// alpha channel opaque. len(dst) must be at least len(src).
func bgraToRGBA(dst, src []byte) {
	for i := 0; i+3 < len(src); i += 4 {
		dst[i+0] = src[i+2]
		dst[i+1] = src[i+1]
		dst[i+2] = src[i+0]
		dst[i+3] = 0xFF
	}
}
