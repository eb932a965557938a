package renderer

const meshVertexShader = `
#version 410 core

layout (location = 0) in vec3 aPosition;
layout (location = 1) in vec3 aNormal;
layout (location = 2) in vec2 aTexCoord;

uniform mat4 uModel;
uniform mat4 uView;
uniform mat4 uProj;
uniform mat4 uNormalMatrix;

out vec3 vNormal;
out vec2 vTexCoord;

void main() {
    vNormal = normalize(mat3(uNormalMatrix) * aNormal);
    vTexCoord = aTexCoord;
    gl_Position = uProj * uView * uModel * vec4(aPosition, 1.0);
}
`

// Lambert shading. Light values are already scaled by intensity.
const meshFragmentShader = `
#version 410 core

in vec3 vNormal;
in vec2 vTexCoord;

uniform sampler2D uMap;
uniform vec4 uBaseColor;
uniform vec3 uAmbient;
uniform vec3 uLightColor;
uniform vec3 uLightDir;

out vec4 FragColor;

const float PI = 3.14159265;

void main() {
    vec4 albedo = uBaseColor * texture(uMap, vTexCoord);
    vec3 n = normalize(vNormal);
    if (!gl_FrontFacing) {
        n = -n;
    }
    float diffuse = max(dot(n, normalize(uLightDir)), 0.0);
    vec3 light = (uAmbient + uLightColor * diffuse) / PI;
    FragColor = vec4(albedo.rgb * light, albedo.a);
}
`
