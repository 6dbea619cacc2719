package gpu

import "image"

// ImageTexture describes an upload of img, top row first. Rows are copied when
// the image's stride is wider than its bounds.
func ImageTexture(img *image.RGBA, filter Filter) TextureDesc {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := img.Pix
	if img.Stride != w*4 || len(pix) != w*h*4 {
		pix = make([]byte, w*h*4)
		for y := range h {
			row := img.PixOffset(b.Min.X, b.Min.Y+y)
			copy(pix[y*w*4:(y+1)*w*4], img.Pix[row:row+w*4])
		}
	}
	return TextureDesc{Width: w, Height: h, Pixels: pix, Filter: filter}
}

// StripTexture describes a 1-pixel-high RGBA strip such as a colormap LUT.
func StripTexture(rgba []byte, filter Filter) TextureDesc {
	return TextureDesc{Width: len(rgba) / 4, Height: 1, Pixels: rgba, Filter: filter}
}
