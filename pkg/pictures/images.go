package pictures

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"github.com/WolfyD/story-timeline-sub000/pkg/errcodes"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Decoders are registered for every accepted input format; files are only
// ever written back out as their original format, PNG, or JPEG.
var acceptedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type processedImage struct {
	data     []byte
	fileType string
	ext      string
	width    int
	height   int
}

// processImage validates an uploaded image and downscales it when it exceeds
// the dimension or size limits. Images already within bounds are kept
// byte-for-byte as uploaded.
func (svc *Service) processImage(data []byte) (*processedImage, error) {
	mtype := mimetype.Detect(data)
	ext, ok := acceptedImageTypes[mtype.String()]
	if !ok {
		return nil, errcodes.UnsupportedMediaType()
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	srcBounds := src.Bounds()
	srcW := srcBounds.Dx()
	srcH := srcBounds.Dy()

	if srcW <= svc.maxDimension && srcH <= svc.maxDimension && len(data) <= svc.maxEncodedBytes {
		return &processedImage{
			data:     data,
			fileType: mtype.String(),
			ext:      ext,
			width:    srcW,
			height:   srcH,
		}, nil
	}

	targetW, targetH := fitDimensions(srcW, srcH, svc.maxDimension, svc.maxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, srcBounds, draw.Over, nil)

	buf := &bytes.Buffer{}
	// PNG stays PNG so transparency survives; everything else becomes JPEG.
	if mtype.Is("image/png") {
		if err := png.Encode(buf, dst); err != nil {
			return nil, errors.WithStack(err)
		}
		if buf.Len() <= svc.maxEncodedBytes {
			return &processedImage{
				data:     buf.Bytes(),
				fileType: "image/png",
				ext:      ".png",
				width:    targetW,
				height:   targetH,
			}, nil
		}
		buf.Reset()
	}
	if err := jpeg.Encode(buf, dst, &jpeg.Options{Quality: 80}); err != nil {
		return nil, errors.WithStack(err)
	}
	return &processedImage{
		data:     buf.Bytes(),
		fileType: "image/jpeg",
		ext:      ".jpg",
		width:    targetW,
		height:   targetH,
	}, nil
}

// fitDimensions calculates target dimensions maintaining aspect ratio.
func fitDimensions(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= maxW && srcH <= maxH {
		return srcW, srcH
	}

	ratioW := float64(maxW) / float64(srcW)
	ratioH := float64(maxH) / float64(srcH)

	ratio := ratioW
	if ratioH < ratioW {
		ratio = ratioH
	}

	return int(float64(srcW) * ratio), int(float64(srcH) * ratio)
}
