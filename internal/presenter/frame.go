package presenter

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	xdraw "golang.org/x/image/draw"

	"komaokuri/internal/imageset"
)

// Frame は表示中の画像を返す
// maxWidth が正で画像より小さい場合は縮小したJPEGを返す
func (p *Presenter) Frame(maxWidth int) (imageset.ImageRef, error) {
	img, ok := p.source.Current()
	if !ok {
		return imageset.ImageRef{}, ErrNoImage
	}
	if maxWidth <= 0 {
		return img, nil
	}

	data, err := ScaleJPEG(img.Data, maxWidth)
	if err != nil {
		return imageset.ImageRef{}, err
	}
	img.Data = data
	return img, nil
}

// ScaleJPEG はJPEGを幅 maxWidth 以下に縮小する。既に小さい場合はそのまま返す
func ScaleJPEG(data []byte, maxWidth int) ([]byte, error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("JPEG ヘッダの読み込みに失敗: %w", err)
	}
	if cfg.Width <= maxWidth {
		return data, nil
	}

	src, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("JPEG デコードに失敗: %w", err)
	}

	height := cfg.Height * maxWidth / cfg.Width
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("JPEG エンコードに失敗: %w", err)
	}
	return buf.Bytes(), nil
}
