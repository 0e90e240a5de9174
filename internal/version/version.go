package version

// Version is the current version of the swamp CLI.
// This value can be overridden at build time using:
//   go build -ldflags="-X 'github.com/SK124/Swamp/internal/version.Version=v1.0.0'"
var Version = "dev"

// ClientName identifies this client in device info exchanged with peers.
const ClientName = "swamp-cli"
