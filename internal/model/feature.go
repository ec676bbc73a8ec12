package model

import "github.com/fathom-ml/fathom/internal/onnx"

// FeatureKind classifies a model input or output.
type FeatureKind int

const (
	FeatureTensor FeatureKind = iota
	FeatureImage
	FeatureMap
	FeatureSequence
)

func (k FeatureKind) String() string {
	switch k {
	case FeatureTensor:
		return "tensor"
	case FeatureImage:
		return "image"
	case FeatureMap:
		return "map"
	case FeatureSequence:
		return "sequence"
	}
	return "unknown"
}

// Feature describes one named model input or output.
type Feature interface {
	Name() string
	Kind() FeatureKind
	// IsFloat16 reports whether the feature's element type is a 16-bit
	// float (float16 or bfloat16).
	IsFloat16() bool
	Description() string
}

// Dim is one dimension of a feature shape. Size is -1 for dynamic
// dimensions, in which case Param carries the dimension name if any.
type Dim struct {
	Size  int64
	Param string
}

// TensorFeature is a plain tensor-valued feature.
type TensorFeature struct {
	name        string
	description string
	elemType    int32
	dims        []Dim
}

func (f *TensorFeature) Name() string { return f.name }
func (f *TensorFeature) Kind() FeatureKind { return FeatureTensor }
func (f *TensorFeature) Description() string { return f.description }
func (f *TensorFeature) ElemType() int32 { return f.elemType }
func (f *TensorFeature) Dims() []Dim { return f.dims }

func (f *TensorFeature) IsFloat16() bool {
	return isFloat16Elem(f.elemType)
}

// ImageFeature is a rank-4 tensor feature the model's metadata declares as
// an image. It keeps the underlying tensor description.
type ImageFeature struct {
	TensorFeature
	pixelFormat string
}

func (f *ImageFeature) Kind() FeatureKind { return FeatureImage }
func (f *ImageFeature) PixelFormat() string { return f.pixelFormat }

// MapFeature is a map-valued feature with scalar keys.
type MapFeature struct {
	name        string
	description string
	keyType     int32
	valueType   *onnx.Type
}

func (f *MapFeature) Name() string { return f.name }
func (f *MapFeature) Kind() FeatureKind { return FeatureMap }
func (f *MapFeature) Description() string { return f.description }
func (f *MapFeature) KeyType() int32 { return f.keyType }
func (f *MapFeature) ValueType() *onnx.Type { return f.valueType }

func (f *MapFeature) IsFloat16() bool {
	return typeUsesFloat16(f.valueType)
}

// SequenceFeature is a homogeneous sequence-valued feature.
type SequenceFeature struct {
	name        string
	description string
	elemType    *onnx.Type
}

func (f *SequenceFeature) Name() string { return f.name }
func (f *SequenceFeature) Kind() FeatureKind { return FeatureSequence }
func (f *SequenceFeature) Description() string { return f.description }
func (f *SequenceFeature) ElemType() *onnx.Type { return f.elemType }

func (f *SequenceFeature) IsFloat16() bool {
	return typeUsesFloat16(f.elemType)
}

const pixelFormatKey = "Image.BitmapPixelFormat"

// buildFeature maps one typed graph value to a feature descriptor.
// Values with no name or no type are not features and return nil.
func buildFeature(v onnx.ValueInfo, metadata map[string]string) Feature {
	if v.Name == "" || v.Type == nil {
		return nil
	}
	switch {
	case v.Type.TensorType != nil:
		tf := TensorFeature{
			name:        v.Name,
			description: v.DocString,
			elemType:    v.Type.TensorType.ElemType,
		}
		if sh := v.Type.TensorType.Shape; sh != nil {
			tf.dims = make([]Dim, len(sh.Dims))
			for i, d := range sh.Dims {
				if d.Param != "" {
					tf.dims[i] = Dim{Size: -1, Param: d.Param}
				} else {
					tf.dims[i] = Dim{Size: d.Value}
				}
			}
		}
		if pf, ok := metadata[pixelFormatKey]; ok && len(tf.dims) == 4 {
			return &ImageFeature{TensorFeature: tf, pixelFormat: pf}
		}
		return &tf
	case v.Type.MapType != nil:
		return &MapFeature{
			name:        v.Name,
			description: v.DocString,
			keyType:     v.Type.MapType.KeyType,
			valueType:   v.Type.MapType.ValueType,
		}
	case v.Type.SequenceType != nil:
		return &SequenceFeature{
			name:        v.Name,
			description: v.DocString,
			elemType:    v.Type.SequenceType.ElemType,
		}
	}
	return nil
}

func isFloat16Elem(elem int32) bool {
	return elem == onnx.ElemFloat16 || elem == onnx.ElemBfloat16
}

// typeUsesFloat16 walks a nested type looking for a 16-bit float tensor
// element anywhere inside.
func typeUsesFloat16(t *onnx.Type) bool {
	for t != nil {
		switch {
		case t.TensorType != nil:
			return isFloat16Elem(t.TensorType.ElemType)
		case t.SequenceType != nil:
			t = t.SequenceType.ElemType
		case t.MapType != nil:
			t = t.MapType.ValueType
		default:
			return false
		}
	}
	return false
}
