// Package compress provides the byte-stream compressors used underneath the
// byte-oriented tile codecs.
//
// The FITS GZIP_1 and GZIP_2 algorithms need gzip framing, which GzipCompressor
// provides through klauspost/compress. The ZSTD_1, LZ4_1 and S2_1 extension
// algorithms reuse the remaining compressors, and NOCOMPRESS uses the
// pass-through NoOpCompressor.
//
//	codec, err := compress.GetCodec(format.StreamGzip)
//	if err != nil {
//		return err
//	}
//	packed, err := codec.Compress(compress.Shuffle(raw, 4))
//
// All built-in codecs are stateless apart from pooled encoder state and are
// safe for concurrent use by tile workers.
package compress
