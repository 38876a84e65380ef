package app

// AppName names the config and state directories.
const AppName = "talentvibe"

// AppVersion is overridden at build time with -ldflags "-X".
var AppVersion = "dev"
