package compress

// Shuffle transposes data viewed as a sequence of width-byte elements so that
// all first bytes come first, then all second bytes, and so on. This is the
// byte shuffle GZIP_2 applies before deflate. A trailing partial element is
// left in place.
func Shuffle(data []byte, width int) []byte {
	out := make([]byte, len(data))
	if width <= 1 {
		copy(out, data)
		return out
	}

	n := len(data) / width
	for i := range n {
		for b := range width {
			out[b*n+i] = data[i*width+b]
		}
	}
	copy(out[n*width:], data[n*width:])

	return out
}

// Unshuffle reverses Shuffle.
func Unshuffle(data []byte, width int) []byte {
	out := make([]byte, len(data))
	if width <= 1 {
		copy(out, data)
		return out
	}

	n := len(data) / width
	for i := range n {
		for b := range width {
			out[i*width+b] = data[b*n+i]
		}
	}
	copy(out[n*width:], data[n*width:])

	return out
}
