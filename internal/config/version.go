package config

// BuildVersion is overridden at link time
var BuildVersion = "development"
