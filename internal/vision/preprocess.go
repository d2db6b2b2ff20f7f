package vision

import (
	"fmt"
	"image"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// ImageNet normalization the weights were trained against.
var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

// Filter names a resampling filter for the 224x224 resize.
type Filter string

const (
	// FilterBilinear matches the PIL default used by torchvision's Resize.
	FilterBilinear Filter = "bilinear"
	FilterLanczos3 Filter = "lanczos3"
	FilterNearest  Filter = "nearest"
)

// Preprocessor turns an image into the normalized model input.
type Preprocessor struct {
	filter Filter
}

var defaultPreprocessor = &Preprocessor{filter: FilterBilinear}

// NewPreprocessor returns a preprocessor for the named filter; empty means bilinear.
func NewPreprocessor(filter string) (*Preprocessor, error) {
	switch f := Filter(filter); f {
	case "":
		return &Preprocessor{filter: FilterBilinear}, nil
	case FilterBilinear, FilterLanczos3, FilterNearest:
		return &Preprocessor{filter: f}, nil
	default:
		return nil, fmt.Errorf("unknown resize filter %q", filter)
	}
}

func (p *Preprocessor) Filter() Filter {
	return p.filter
}

// PreprocessImage runs the default bilinear pipeline.
func PreprocessImage(img image.Image) *Tensor {
	return defaultPreprocessor.Preprocess(img)
}

// Preprocess drops alpha, resizes to 224x224, scales to [0,1], normalizes
// per channel and lays the result out as [1,3,224,224].
func (p *Preprocessor) Preprocess(img image.Image) *Tensor {
	resized := p.resize(toRGB(img))

	const size = width * height
	out := make([]float32, channels*size)
	for y := 0; y < height; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < width; x++ {
			px := row[x*4 : x*4+3]
			idx := y*width + x
			for c := 0; c < channels; c++ {
				v := float32(px[c]) / 255.0
				out[c*size+idx] = (v - imagenetMean[c]) / imagenetStd[c]
			}
		}
	}
	return &Tensor{Shape: InputShape, Data: out}
}

func (p *Preprocessor) resize(src *image.NRGBA) *image.NRGBA {
	switch p.filter {
	case FilterLanczos3, FilterNearest:
		interp := resize.Lanczos3
		if p.filter == FilterNearest {
			interp = resize.NearestNeighbor
		}
		// nfnt returns *image.RGBA for NRGBA input; src is opaque so the
		// conversion back is lossless.
		return toRGB(resize.Resize(width, height, src, interp))
	default:
		dst := image.NewNRGBA(image.Rect(0, 0, width, height))
		draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		return dst
	}
}

// toRGB copies img into an opaque NRGBA. Alpha is discarded rather than
// composited, so a transparent pixel keeps its stored colour.
func toRGB(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if src, ok := img.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()*4], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
		}
	} else {
		draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	}
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out
}
