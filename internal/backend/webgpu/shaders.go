package webgpu

// WGSL compute shaders for the element-wise kernels. String constants keep
// the package free of embed plumbing.

// workgroupSize is the number of threads per workgroup.
const workgroupSize = 256

const binaryShaderHeader = `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
`

const addShader = binaryShaderHeader + `
        result[idx] = a[idx] + b[idx];
    }
}
`

const subShader = binaryShaderHeader + `
        result[idx] = a[idx] - b[idx];
    }
}
`

const mulShader = binaryShaderHeader + `
        result[idx] = a[idx] * b[idx];
    }
}
`

const divShader = binaryShaderHeader + `
        result[idx] = a[idx] / b[idx];
    }
}
`

const unaryShaderHeader = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params {
    size: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.size) {
`

const reluShader = unaryShaderHeader + `
        result[idx] = max(input[idx], 0.0);
    }
}
`

const sigmoidShader = unaryShaderHeader + `
        result[idx] = 1.0 / (1.0 + exp(-input[idx]));
    }
}
`
