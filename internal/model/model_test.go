package model

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathom-ml/fathom/internal/onnx"
	"github.com/fathom-ml/fathom/internal/onnx/onnxtest"
)

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "no-such-model.onnx"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenAndRead(t *testing.T) {
	data := onnxtest.SimpleAdd()
	path := filepath.Join(t.TempDir(), "add.onnx")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	fromFile, err := Open(path)
	require.NoError(t, err)
	fromStream, err := Read(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, fromFile.Graph().Name, fromStream.Graph().Name)
}

func TestFromBytesGarbage(t *testing.T) {
	_, err := FromBytes([]byte{0xff, 0xff, 0xff})
	var perr *onnx.ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestFromBytesNoGraph(t *testing.T) {
	m := &onnxtest.Buffer{}
	m.Varint(1, 8)
	_, err := FromBytes(m.Bytes())
	var perr *onnx.ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestSummarizeSimpleAdd(t *testing.T) {
	d, err := FromBytes(onnxtest.SimpleAdd())
	require.NoError(t, err)

	s, err := Summarize(d)
	require.NoError(t, err)

	require.Len(t, s.Inputs, 2)
	require.Len(t, s.Outputs, 1)
	assert.Equal(t, "X", s.Inputs[0].Name())
	assert.Equal(t, "Y", s.Inputs[1].Name())
	assert.Equal(t, "Z", s.Outputs[0].Name())
	assert.Equal(t, FeatureTensor, s.Inputs[0].Kind())

	tf, ok := s.Outputs[0].(*TensorFeature)
	require.True(t, ok)
	assert.Equal(t, int32(onnx.ElemFloat), tf.ElemType())
	assert.Equal(t, []Dim{{Size: 1}, {Size: 4}}, tf.Dims())
}

func TestSummarizeDefaults(t *testing.T) {
	d, err := FromBytes(onnxtest.Model(onnxtest.Graph("g", nil, nil, nil, nil), onnxtest.ModelOpts{}))
	require.NoError(t, err)

	s, err := Summarize(d)
	require.NoError(t, err)
	assert.Equal(t, "", s.Author)
	assert.Equal(t, "", s.Domain)
	assert.Equal(t, "", s.Description)
	assert.Equal(t, int64(0), s.Version)
	assert.Empty(t, s.Inputs)
	assert.Empty(t, s.Outputs)
}

func TestSummarizeMetadata(t *testing.T) {
	data := onnxtest.Model(
		onnxtest.Graph("g", nil, nil, nil, nil),
		onnxtest.ModelOpts{
			ProducerName: "acme-producer",
			Domain:       "vision",
			DocString:    "a classifier",
			ModelVersion: 3,
			Metadata:     map[string]string{"license": "mit"},
		},
	)
	d, err := FromBytes(data)
	require.NoError(t, err)

	s, err := Summarize(d)
	require.NoError(t, err)
	assert.Equal(t, "acme-producer", s.Author)
	assert.Equal(t, "vision", s.Domain)
	assert.Equal(t, "a classifier", s.Description)
	assert.Equal(t, int64(3), s.Version)
	assert.Equal(t, "mit", s.Metadata["license"])
}

func TestSummarizeAuthorFromProducerName(t *testing.T) {
	data := onnxtest.Model(
		onnxtest.Graph("g", nil, nil, nil, nil),
		onnxtest.ModelOpts{ProducerName: "acme-producer"},
	)
	d, err := FromBytes(data)
	require.NoError(t, err)

	s, err := Summarize(d)
	require.NoError(t, err)
	assert.Equal(t, "acme-producer", s.Author)

	// A free-form "author" metadata entry is just metadata; the author
	// identity comes from the producer name alone.
	data = onnxtest.Model(
		onnxtest.Graph("g", nil, nil, nil, nil),
		onnxtest.ModelOpts{Metadata: map[string]string{"author": "someone else"}},
	)
	d, err = FromBytes(data)
	require.NoError(t, err)

	s, err = Summarize(d)
	require.NoError(t, err)
	assert.Equal(t, "", s.Author)
	assert.Equal(t, "someone else", s.Metadata["author"])
}

func TestSummarizeExcludesInitializers(t *testing.T) {
	d, err := FromBytes(onnxtest.MatMulWithWeight())
	require.NoError(t, err)

	s, err := Summarize(d)
	require.NoError(t, err)

	// W is declared as a graph input but carried as an initializer, so it
	// is a weight, not something callers bind.
	require.Len(t, s.Inputs, 1)
	assert.Equal(t, "X", s.Inputs[0].Name())
	assert.Nil(t, s.Input("W"))
	assert.NotNil(t, s.Output("Y"))
}

func TestSummarizeImageFeature(t *testing.T) {
	g := onnxtest.Graph("img", nil,
		[]*onnxtest.Buffer{onnxtest.ValueInfo("image", onnxtest.ElemFloat, []int64{1, 3, 224, 224})},
		[]*onnxtest.Buffer{onnxtest.ValueInfo("scores", onnxtest.ElemFloat, []int64{1, 1000})},
		nil,
	)
	data := onnxtest.Model(g, onnxtest.ModelOpts{
		Metadata: map[string]string{"Image.BitmapPixelFormat": "Bgra8"},
	})
	d, err := FromBytes(data)
	require.NoError(t, err)

	s, err := Summarize(d)
	require.NoError(t, err)

	img, ok := s.Inputs[0].(*ImageFeature)
	require.True(t, ok)
	assert.Equal(t, FeatureImage, img.Kind())
	assert.Equal(t, "Bgra8", img.PixelFormat())

	// Rank-2 output stays a plain tensor even with image metadata present.
	assert.Equal(t, FeatureTensor, s.Outputs[0].Kind())
}

func TestCopyIsIndependent(t *testing.T) {
	d, err := FromBytes(onnxtest.SimpleAdd())
	require.NoError(t, err)

	c, err := Copy(d)
	require.NoError(t, err)

	sd, err := Summarize(d)
	require.NoError(t, err)
	sc, err := Summarize(c)
	require.NoError(t, err)
	assert.Equal(t, len(sd.Inputs), len(sc.Inputs))

	// Detaching the original must not affect the copy.
	_, err = d.Detach()
	require.NoError(t, err)
	assert.True(t, c.Valid())
	_, err = Summarize(c)
	assert.NoError(t, err)
}

func TestDetachInvalidates(t *testing.T) {
	d, err := FromBytes(onnxtest.SimpleAdd())
	require.NoError(t, err)

	tree, err := d.Detach()
	require.NoError(t, err)
	require.NotNil(t, tree.Graph)

	assert.False(t, d.Valid())
	_, err = d.Detach()
	assert.ErrorIs(t, err, ErrDetached)
	_, err = Summarize(d)
	assert.ErrorIs(t, err, ErrDetached)
	_, err = Copy(d)
	assert.ErrorIs(t, err, ErrDetached)
}

func float16Model(in, out int64, castTo int64, initElem int64) []byte {
	n := onnxtest.Node("Cast", "cast0", []string{"X"}, []string{"C"})
	onnxtest.IntAttr(n, "to", castTo)
	g := onnxtest.Graph("g",
		[]*onnxtest.Buffer{n},
		[]*onnxtest.Buffer{onnxtest.ValueInfo("X", in, []int64{1, 4})},
		[]*onnxtest.Buffer{onnxtest.ValueInfo("Y", out, []int64{1, 4})},
		[]*onnxtest.Buffer{onnxtest.Initializer("W", initElem, []int64{2}, make([]byte, 8))},
	)
	return onnxtest.Model(g, onnxtest.ModelOpts{})
}

func summarized(t *testing.T, data []byte) (*Summary, *Descriptor) {
	t.Helper()
	d, err := FromBytes(data)
	require.NoError(t, err)
	s, err := Summarize(d)
	require.NoError(t, err)
	return s, d
}

func TestValidatePasses(t *testing.T) {
	s, d := summarized(t, onnxtest.SimpleAdd())
	assert.NoError(t, Validate(s, d, false))
}

func TestValidateFloat16Input(t *testing.T) {
	s, d := summarized(t, float16Model(onnxtest.ElemFloat16, onnxtest.ElemFloat16, onnxtest.ElemFloat16, onnxtest.ElemFloat16))

	e := Validate(s, d, false)
	var perr *PrecisionError
	require.ErrorAs(t, e, &perr)
	// The input is reported first even though the cast, initializer and
	// output would all fail too.
	assert.Equal(t, "input", perr.Component)
	assert.Equal(t, "X", perr.Name)
}

func TestValidateFloat16Cast(t *testing.T) {
	s, d := summarized(t, float16Model(onnxtest.ElemFloat, onnxtest.ElemFloat, onnxtest.ElemFloat16, onnxtest.ElemFloat))

	e := Validate(s, d, false)
	var perr *PrecisionError
	require.ErrorAs(t, e, &perr)
	assert.Equal(t, "operator", perr.Component)
	assert.Equal(t, "cast0", perr.Name)
}

func TestValidateFloat16Initializer(t *testing.T) {
	s, d := summarized(t, float16Model(onnxtest.ElemFloat, onnxtest.ElemFloat, onnxtest.ElemInt64, onnxtest.ElemFloat16))

	e := Validate(s, d, false)
	var perr *PrecisionError
	require.ErrorAs(t, e, &perr)
	assert.Equal(t, "initializer", perr.Component)
	assert.Equal(t, "W", perr.Name)
}

func TestValidateFloat16Output(t *testing.T) {
	s, d := summarized(t, float16Model(onnxtest.ElemFloat, onnxtest.ElemFloat16, onnxtest.ElemInt64, onnxtest.ElemFloat))

	e := Validate(s, d, false)
	var perr *PrecisionError
	require.ErrorAs(t, e, &perr)
	assert.Equal(t, "output", perr.Component)
	assert.Equal(t, "Y", perr.Name)
}

func TestValidateFloat16Supported(t *testing.T) {
	s, d := summarized(t, float16Model(onnxtest.ElemFloat16, onnxtest.ElemFloat16, onnxtest.ElemFloat16, onnxtest.ElemFloat16))
	assert.NoError(t, Validate(s, d, true))
}
