// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"strconv"
	"sync"

	"github.com/gogpu/gfx/backend"
	"github.com/gogpu/gfx/shaderchunk"
)

// Chunk names registered by RegisterChunks.
const (
	ChunkShadowUniforms  = "shadow.uniforms"
	ChunkShadowVS        = "shadow.vs"
	ChunkShadowMomentsFS = "shadow.moments.fs"
	ChunkFullscreenVS    = "fullscreen.vs"
	ChunkVSMBlurFS       = "vsm.blur.fs"

	// GLSL ES 3.00 variants for backends that take GLSL. Each chunk is a
	// complete stage introduced by its backend stage marker.
	ChunkShadowVSGLSL        = "shadow.vs.glsl"
	ChunkShadowMomentsFSGLSL = "shadow.moments.fs.glsl"
	ChunkVSMBlurGLSL         = "vsm.blur.glsl"
)

const shadowUniformsWGSL = `struct ShadowUniforms {
    view_proj: mat4x4<f32>,
    model: mat4x4<f32>,
    // xyz: light position, w: far plane
    light: vec4<f32>,
};

@group(0) @binding(0) var<uniform> u: ShadowUniforms;
`

const shadowVSWGSL = `struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) world: vec3<f32>,
};

@vertex
fn vs_main(@location(0) position: vec3<f32>) -> VertexOutput {
    var out: VertexOutput;
    let world = u.model * vec4<f32>(position, 1.0);
    out.world = world.xyz;
    out.position = u.view_proj * world;
    return out;
}
`

// The fragment writes the first two depth moments.
const shadowMomentsFSWGSL = `@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    let depth = $DEPTH;
    return vec4<f32>(depth, depth * depth, 0.0, 1.0);
}
`

const fullscreenVSWGSL = `@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
    let uv = vec2<f32>(f32((i << 1u) & 2u), f32(i & 2u));
    return vec4<f32>(uv * 2.0 - 1.0, 0.0, 1.0);
}
`

// params.xy: step direction in texels, params.z: sigma.
const vsmBlurFSWGSL = `struct BlurUniforms {
    params: vec4<f32>,
};

@group(0) @binding(0) var<uniform> blur: BlurUniforms;
@group(0) @binding(1) var source: texture_2d<f32>;

@fragment
fn fs_main(@builtin(position) frag: vec4<f32>) -> @location(0) vec4<f32> {
    let size = vec2<i32>(textureDimensions(source));
    let center = vec2<i32>(frag.xy);
    let dir = vec2<i32>(blur.params.xy);
    let sigma = blur.params.z;
    var sum = vec2<f32>(0.0);
    var total = 0.0;
    for (var k = -$SAMPLES; k <= $SAMPLES; k = k + 1) {
        let p = clamp(center + dir * k, vec2<i32>(0), size - vec2<i32>(1));
        let w = exp(-f32(k * k) / (2.0 * sigma * sigma));
        sum = sum + textureLoad(source, p, 0).$CH * w;
        total = total + w;
    }
    return vec4<f32>(sum / total, 0.0, 1.0);
}
`

const shadowUniformsGLSL = `layout(std140) uniform ShadowUniforms {
    mat4 view_proj;
    mat4 model;
    vec4 light;
} u;
`

const shadowVSGLSL = backend.GLSLVertexMarker + `
#version 300 es
precision highp float;
` + shadowUniformsGLSL + `
layout(location = 0) in vec3 position;
out vec3 v_world;

void main() {
    vec4 world = u.model * vec4(position, 1.0);
    v_world = world.xyz;
    gl_Position = u.view_proj * world;
}
`

const shadowMomentsFSGLSL = backend.GLSLFragmentMarker + `
#version 300 es
precision highp float;
` + shadowUniformsGLSL + `
in vec3 v_world;
out vec4 moments;

void main() {
    float depth = $DEPTH;
    moments = vec4(depth, depth * depth, 0.0, 1.0);
}
`

const vsmBlurGLSL = backend.GLSLVertexMarker + `
#version 300 es

void main() {
    vec2 uv = vec2(float((gl_VertexID << 1) & 2), float(gl_VertexID & 2));
    gl_Position = vec4(uv * 2.0 - 1.0, 0.0, 1.0);
}
` + backend.GLSLFragmentMarker + `
#version 300 es
precision highp float;

layout(std140) uniform BlurUniforms {
    vec4 params;
} blur;
uniform highp sampler2D tex0;
out vec4 moments;

void main() {
    ivec2 size = textureSize(tex0, 0);
    ivec2 center = ivec2(gl_FragCoord.xy);
    ivec2 dir = ivec2(blur.params.xy);
    float sigma = blur.params.z;
    vec2 sum = vec2(0.0);
    float total = 0.0;
    for (int k = -$SAMPLES; k <= $SAMPLES; k++) {
        ivec2 p = clamp(center + dir * k, ivec2(0), size - ivec2(1));
        float w = exp(-float(k * k) / (2.0 * sigma * sigma));
        sum += texelFetch(tex0, p, 0).$CH * w;
        total += w;
    }
    moments = vec4(sum / total, 0.0, 1.0);
}
`

// Depth expressions for $DEPTH. Point lights store linear distance so all
// six faces share one scale.
const (
	depthLinearDistance = "length(in.world - u.light.xyz) / u.light.w"
	depthClipZ          = "in.position.z"

	depthLinearDistanceGLSL = "length(v_world - u.light.xyz) / u.light.w"
	depthClipZGLSL          = "gl_FragCoord.z"
)

// RegisterChunks adds the built-in render chunks to r.
func RegisterChunks(r *shaderchunk.Registry) {
	r.Set(ChunkShadowUniforms, shadowUniformsWGSL)
	r.Set(ChunkShadowVS, shadowVSWGSL)
	r.Set(ChunkShadowMomentsFS, shadowMomentsFSWGSL)
	r.Set(ChunkFullscreenVS, fullscreenVSWGSL)
	r.Set(ChunkVSMBlurFS, vsmBlurFSWGSL)
	r.Set(ChunkShadowVSGLSL, shadowVSGLSL)
	r.Set(ChunkShadowMomentsFSGLSL, shadowMomentsFSGLSL)
	r.Set(ChunkVSMBlurGLSL, vsmBlurGLSL)
}

// DefaultChunks returns a shared registry holding the built-in chunks.
var DefaultChunks = sync.OnceValue(func() *shaderchunk.Registry {
	r := shaderchunk.NewRegistry()
	RegisterChunks(r)
	return r
})

// shadowProgram returns the shadow depth program for a light type. Without
// VSM the program has no fragment stage.
func shadowProgram(lang backend.ShaderLanguage, t LightType, vsm bool) shaderchunk.Program {
	if lang == backend.ShaderLanguageGLSL {
		return shadowProgramGLSL(t, vsm)
	}
	if !vsm {
		return shaderchunk.Program{Name: "shadow depth", Chunks: []string{ChunkShadowUniforms, ChunkShadowVS}}
	}
	depth := depthClipZ
	if t == LightPoint {
		depth = depthLinearDistance
	}
	return shaderchunk.Program{
		Name:   "shadow moments",
		Chunks: []string{ChunkShadowUniforms, ChunkShadowVS, ChunkShadowMomentsFS},
		Tokens: map[string]string{"DEPTH": depth},
	}
}

func shadowProgramGLSL(t LightType, vsm bool) shaderchunk.Program {
	if !vsm {
		return shaderchunk.Program{Name: "shadow depth glsl", Chunks: []string{ChunkShadowVSGLSL}}
	}
	depth := depthClipZGLSL
	if t == LightPoint {
		depth = depthLinearDistanceGLSL
	}
	return shaderchunk.Program{
		Name:   "shadow moments glsl",
		Chunks: []string{ChunkShadowVSGLSL, ChunkShadowMomentsFSGLSL},
		Tokens: map[string]string{"DEPTH": depth},
	}
}

// blurProgram returns the separable Gaussian blur over radius texels.
func blurProgram(lang backend.ShaderLanguage, radius int) shaderchunk.Program {
	tokens := map[string]string{"SAMPLES": strconv.Itoa(radius), "CH": "xy"}
	if lang == backend.ShaderLanguageGLSL {
		return shaderchunk.Program{Name: "vsm blur glsl", Chunks: []string{ChunkVSMBlurGLSL}, Tokens: tokens}
	}
	return shaderchunk.Program{
		Name:   "vsm blur",
		Chunks: []string{ChunkFullscreenVS, ChunkVSMBlurFS},
		Tokens: tokens,
	}
}
