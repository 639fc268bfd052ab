package light

// ShadowMapResolution is the default width and height in texels of the spot light shadow map.
// Renderers use this as their initial value but can override it via WithShadowResolution.
const ShadowMapResolution = 2048

// MaxDirectionalLights is the number of directional lights the static light data holds. Further
// directional lights are ignored.
const MaxDirectionalLights = 2
