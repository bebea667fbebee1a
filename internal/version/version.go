// ABOUTME: Version constants for the loopmon monitoring engine
// ABOUTME: Reported in logs and the viz server handshake
package version

const (
	// Version is the current release version.
	Version = "0.1.0"

	// Product is the product name reported to viz clients.
	Product = "Loopmon"

	// Manufacturer identifies the project.
	Manufacturer = "Loopmon Project"
)
