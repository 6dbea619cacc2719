package particle

// Shared GLSL helpers. The constants match the CPU mirrors in kernels.go.
const glslCommon = `
const float MPH_TO_DEGREES = 1.60934 / 111.32;

float random(vec2 co) {
	float dt = dot(co, vec2(12.9898, 78.233));
	float sn = mod(dt, 3.14);
	return fract(sin(sn) * 43758.5453 + u_time);
}

vec2 mphToDegreesPerFrame(vec2 mph, float lat) {
	float latScale = cos(lat * 3.14159 / 180.0);
	return vec2(mph.x * MPH_TO_DEGREES / latScale, -mph.y * MPH_TO_DEGREES);
}

vec2 sampleWind(vec2 pos) {
	vec4 texel = texture(u_velocity_texture, pos);
	return vec2(
		mix(u_value_range_u.x, u_value_range_u.y, texel.r),
		mix(u_value_range_v.x, u_value_range_v.y, texel.g)
	);
}

vec2 normalizedVelocity(vec2 pos, vec2 wind) {
	float lat = mix(u_bounds.w, u_bounds.y, 1.0 - pos.y);
	vec2 deg = mphToDegreesPerFrame(wind, lat);
	return vec2(deg.x / (u_bounds.z - u_bounds.x), deg.y / (u_bounds.y - u_bounds.w));
}
`

const updateVertexShader = `#version 330 core
in vec2 a_position;
in float a_age;

out vec2 v_position;
out float v_age;

uniform sampler2D u_velocity_texture;
uniform vec4 u_bounds;
uniform float u_speed_factor;
uniform float u_time;
uniform vec2 u_value_range_u;
uniform vec2 u_value_range_v;
uniform float u_age_threshold;
uniform float u_max_age;
uniform float u_percent_reset;
uniform bool u_should_reset;
` + glslCommon + `
void main() {
	vec2 wind = sampleWind(a_position);
	vec2 newPos = a_position + normalizedVelocity(a_position, wind) * u_speed_factor;
	float age = a_age + 1.0;

	bool reset = newPos.x < 0.0 || newPos.x > 1.0 || newPos.y < 0.0 || newPos.y > 1.0 || length(wind) < 1.5;

	if (age > u_age_threshold) {
		float p = (age - u_age_threshold) / (u_max_age - u_age_threshold);
		if (random(a_position + vec2(u_time * 0.1, age * 0.01)) < p) {
			reset = true;
		}
	}
	if (age > u_max_age) {
		reset = true;
	}
	if (!reset && u_should_reset && random(a_position + vec2(u_time)) < u_percent_reset) {
		reset = true;
	}

	if (reset) {
		vec2 seed = a_position + vec2(u_time);
		newPos = vec2(random(seed + vec2(1.23, 4.56)), random(seed + vec2(7.89, 0.12)));
		age = 0.0;
	}

	v_position = newPos;
	v_age = age;
}
`

// Rasterization is disabled during the update pass; the fragment stage only
// has to link.
const updateFragmentShader = `#version 330 core
out vec4 fragColor;
void main() {
	fragColor = vec4(0.0);
}
`

const renderVertexShader = `#version 330 core
in vec2 a_position;
in float a_trail_offset;

out float v_speed;

uniform mat4 u_matrix;
uniform vec4 u_bounds;
uniform float u_point_size;
uniform float u_speed_factor;
uniform float u_trail_size_decay;
uniform float u_time;
uniform sampler2D u_velocity_texture;
uniform vec2 u_value_range_u;
uniform vec2 u_value_range_v;
uniform vec2 u_speed_range;

const float PI = 3.141592653589793;
` + glslCommon + `
vec2 latLngToMercator(vec2 lnglat) {
	float x = (lnglat.x + 180.0) / 360.0;
	float latRad = lnglat.y * PI / 180.0;
	float y = 0.5 - log(tan(PI / 4.0 + latRad / 2.0)) / (2.0 * PI);
	return vec2(x, y);
}

void main() {
	vec2 head = a_position;
	vec2 wind = sampleWind(head);
	vec2 pos = head - normalizedVelocity(head, wind) * u_speed_factor * a_trail_offset * 1.5;

	float lng = mix(u_bounds.x, u_bounds.z, pos.x);
	float lat = mix(u_bounds.w, u_bounds.y, 1.0 - pos.y);
	gl_Position = u_matrix * vec4(latLngToMercator(vec2(lng, lat)), 0.0, 1.0);
	gl_PointSize = u_point_size * pow(u_trail_size_decay, a_trail_offset);

	v_speed = clamp((length(wind) - u_speed_range.x) / (u_speed_range.y - u_speed_range.x), 0.0, 1.0);
}
`

const renderFragmentShader = `#version 330 core
in float v_speed;
out vec4 fragColor;

uniform sampler2D u_wind_color;
uniform float u_opacity;

void main() {
	float dist = length(gl_PointCoord - vec2(0.5));
	if (dist > 0.5) {
		discard;
	}
	float edge = 1.0 - smoothstep(0.45, 0.5, dist);
	vec4 color = texture(u_wind_color, vec2(v_speed, 0.5));
	fragColor = vec4(max(color.rgb, vec3(0.2)), edge * u_opacity);
}
`
