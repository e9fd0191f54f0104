package media

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/ruzivolabs/ruzivo/internal/fault"

	// Register the webp decoder (decode-only; webp re-encodes as JPEG).
	_ "golang.org/x/image/webp"
)

// JPEG qualities tried in order until the payload fits.
var qualityLevels = []int{85, 75, 65, 55, 45, MinQuality}

// Normalize makes an image acceptable to a vision endpoint: decode,
// downscale anything whose long edge exceeds MaxDimension, and re-encode
// oversized or webp inputs. Images already within limits pass through
// with their original bytes.
func Normalize(data []byte) (*ImageData, error) {
	mimeType := DetectMIME(data)
	if !IsSupported(mimeType) {
		return nil, fault.InvalidArgument("unsupported image type: %s", mimeType)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fault.Parse(err, "cannot decode image")
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width <= MaxDimension && height <= MaxDimension && len(data) <= MaxBytes && format != "webp" {
		return &ImageData{Data: data, MimeType: mimeType, Width: width, Height: height}, nil
	}

	if width > MaxDimension || height > MaxDimension {
		img = imaging.Fit(img, MaxDimension, MaxDimension, imaging.Lanczos)
		bounds = img.Bounds()
		width, height = bounds.Dx(), bounds.Dy()
	}

	encoded, outMime, err := encodeFitting(img, format)
	if err != nil {
		return nil, err
	}
	return &ImageData{Data: encoded, MimeType: outMime, Width: width, Height: height}, nil
}

// encodeFitting re-encodes the image, preferring the lossless original
// format when it fits and walking the JPEG quality ladder otherwise.
func encodeFitting(img image.Image, format string) ([]byte, string, error) {
	switch format {
	case "png":
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", fault.Parse(err, "encode png")
		}
		if buf.Len() <= MaxBytes {
			return buf.Bytes(), "image/png", nil
		}
	case "gif":
		var buf bytes.Buffer
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, "", fault.Parse(err, "encode gif")
		}
		if buf.Len() <= MaxBytes {
			return buf.Bytes(), "image/gif", nil
		}
	}

	// JPEG input, webp input, or a lossless encoding that came out too
	// large: walk the quality ladder.
	for _, quality := range qualityLevels {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, "", fault.Parse(err, "encode jpeg")
		}
		if buf.Len() <= MaxBytes {
			return buf.Bytes(), "image/jpeg", nil
		}
	}
	return nil, "", fault.InvalidArgument("image cannot be reduced below %d MB", MaxBytes/(1024*1024))
}
