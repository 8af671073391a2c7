package orchestrator

import "github.com/manekies/document-converter-app/constants"

// DefaultLocalSizeLimit is the largest image auto mode still routes to local recognition first.
const DefaultLocalSizeLimit int64 = 2621440 // 2.5 MiB

// Route is the routing decision for one request.
type Route struct {
	PreferLocal bool
	AllowCloud  bool
}

// DecideRoute derives the route from the mode and image size alone. limit <= 0 uses
// DefaultLocalSizeLimit.
func DecideRoute(mode constants.Mode, size int64, limit int64) Route {
	if limit <= 0 {
		limit = DefaultLocalSizeLimit
	}
	switch mode {
	case constants.ModeLocal:
		return Route{PreferLocal: true, AllowCloud: false}
	case constants.ModeCloud:
		return Route{PreferLocal: false, AllowCloud: true}
	default:
		return Route{PreferLocal: size <= limit, AllowCloud: true}
	}
}
