package media

// DetectImageType sniffs the encoding of an image payload from its
// magic bytes. It returns "unknown" for anything unrecognized.
func DetectImageType(data []byte) string {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "jpeg"

	case len(data) >= 8 && data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47:
		return "png"

	case len(data) >= 4 && data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38:
		return "gif"

	case len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50:
		return "webp"

	case len(data) >= 2 && data[0] == 0x42 && data[1] == 0x4D:
		return "bmp"

	case len(data) >= 4 && ((data[0] == 0x49 && data[1] == 0x49 && data[2] == 0x2A && data[3] == 0x00) ||
		(data[0] == 0x4D && data[1] == 0x4D && data[2] == 0x00 && data[3] == 0x2A)):
		return "tiff"
	}

	return "unknown"
}

// IsImage reports whether the payload starts like one of the raster
// formats the pipeline can decode.
func IsImage(data []byte) bool {
	return DetectImageType(data) != "unknown"
}
