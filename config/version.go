package config

// Version system:
// vMAJOR.MINOR.PATCH

const Version = "v0.1.0"
