package tensor

// Backend defines the compute capability an execution provider supplies to
// the engine. Implementations may panic on invalid operands; the session
// layer converts panics during a run into execution errors.
//
// Implementations:
//   - backend/generic: pure Go host execution
//   - backend/webgpu: GPU execution via WebGPU with host fallback
type Backend interface {
	// Element-wise binary operations (NumPy-style broadcasting).
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Matrix operations.
	MatMul(a, b *RawTensor) *RawTensor

	// Activations.
	Relu(x *RawTensor) *RawTensor
	Sigmoid(x *RawTensor) *RawTensor
	Softmax(x *RawTensor, dim int) *RawTensor

	// Shape operations.
	Reshape(x *RawTensor, shape Shape) *RawTensor
	Transpose(x *RawTensor, axes ...int) *RawTensor

	// Type conversion.
	Cast(x *RawTensor, dtype DataType) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}
