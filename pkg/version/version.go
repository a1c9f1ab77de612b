package version

// Version is the current release, reported by /api/version and the startup banner.
const Version = "v0.3.1"
