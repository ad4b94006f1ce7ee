package gpu

// effectOrder lists the closed effect set in a stable order for error
// messages and docs.
var effectOrder = []string{
	"bloom", "chromatic_aberration", "vignette", "film_grain", "crt_scanlines", "color_grading",
}

// effectSources maps each effect to its fs_main WGSL, compiled against
// ppPrelude.
var effectSources = map[string]string{
	"bloom": `
@fragment
fn fs_main(in: VSOut) -> @location(0) vec4<f32> {
    let base = textureSample(src, samp, in.uv);
    let px = 1.0 / pp.res;

    // 9-tap box blur of the bright parts.
    var blur = vec3<f32>(0.0);
    for (var dy = -1; dy <= 1; dy = dy + 1) {
        for (var dx = -1; dx <= 1; dx = dx + 1) {
            let offset = vec2<f32>(f32(dx), f32(dy)) * px * 3.0;
            let s = textureSample(src, samp, in.uv + offset).rgb;
            let bright = max(s - vec3<f32>(0.6), vec3<f32>(0.0));
            blur = blur + bright;
        }
    }
    blur = blur / 9.0;

    return vec4<f32>(base.rgb + blur * pp.intensity, base.a);
}
`,
	"chromatic_aberration": `
@fragment
fn fs_main(in: VSOut) -> @location(0) vec4<f32> {
    let center = vec2<f32>(0.5, 0.5);
    let dir = in.uv - center;
    let shift = dir * 0.006 * pp.intensity;

    let r = textureSample(src, samp, in.uv + shift).r;
    let g = textureSample(src, samp, in.uv).g;
    let b = textureSample(src, samp, in.uv - shift).b;
    let a = textureSample(src, samp, in.uv).a;
    return vec4<f32>(r, g, b, a);
}
`,
	"vignette": `
@fragment
fn fs_main(in: VSOut) -> @location(0) vec4<f32> {
    let base = textureSample(src, samp, in.uv);
    let d = distance(in.uv, vec2<f32>(0.5, 0.5));
    let fade = 1.0 - smoothstep(0.4, 0.85, d) * 0.7 * pp.intensity;
    return vec4<f32>(base.rgb * fade, base.a);
}
`,
	"film_grain": `
fn grain_hash(p: vec2<f32>) -> f32 {
    return fract(sin(dot(p, vec2<f32>(12.9898, 78.233))) * 43758.5453);
}

@fragment
fn fs_main(in: VSOut) -> @location(0) vec4<f32> {
    let base = textureSample(src, samp, in.uv);
    let n = grain_hash(in.uv * pp.res + vec2<f32>(pp.time * 61.7, pp.time * 41.3)) - 0.5;
    let grain = n * 0.06 * pp.intensity;
    return vec4<f32>(base.rgb + vec3<f32>(grain), base.a);
}
`,
	"crt_scanlines": `
@fragment
fn fs_main(in: VSOut) -> @location(0) vec4<f32> {
    let base = textureSample(src, samp, in.uv);
    let line = 0.5 + 0.5 * sin(in.uv.y * pp.res.y * 3.14159);
    let dim = mix(1.0, 0.75 + 0.25 * line, pp.intensity);
    return vec4<f32>(base.rgb * dim, base.a);
}
`,
	"color_grading": `
@fragment
fn fs_main(in: VSOut) -> @location(0) vec4<f32> {
    let base = textureSample(src, samp, in.uv);

    // Gentle teal-orange grade with a contrast lift.
    var c = base.rgb;
    c = pow(c, vec3<f32>(1.0 / 1.05));
    let warm = c * vec3<f32>(1.06, 1.0, 0.92);
    let cool = c * vec3<f32>(0.92, 1.0, 1.08);
    let luma = dot(c, vec3<f32>(0.299, 0.587, 0.114));
    var graded = mix(cool, warm, smoothstep(0.2, 0.8, luma));
    graded = (graded - vec3<f32>(0.5)) * 1.04 + vec3<f32>(0.5);

    let out = mix(c, graded, clamp(pp.intensity, 0.0, 1.0));
    return vec4<f32>(out, base.a);
}
`,
}
