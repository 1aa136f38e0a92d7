package gate

import (
	"bytes"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Tensor is a [batch][height][width][channel] float batch.
type Tensor [][][][]float32

// Decode decodes any supported upload format.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Resize scales img to size x size with bilinear interpolation.
func Resize(img image.Image, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Preprocess turns an encoded image into a 1 x size x size x 3 batch with RGB channels in [0,1].
func Preprocess(data []byte, size int) (Tensor, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	resized := Resize(img, size)

	rows := make([][][]float32, size)
	for y := 0; y < size; y++ {
		row := make([][]float32, size)
		for x := 0; x < size; x++ {
			i := resized.PixOffset(x, y)
			row[x] = []float32{
				float32(resized.Pix[i]) / 255,
				float32(resized.Pix[i+1]) / 255,
				float32(resized.Pix[i+2]) / 255,
			}
		}
		rows[y] = row
	}
	return Tensor{rows}, nil
}
