package internal

// Version is the current release of the Grapevine tools and server.
const Version = "0.1.0"
