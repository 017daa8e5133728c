package httpapi

import "time"

// Defaults applied by Configure for zero-valued Options fields.
const (
	DefaultMaxBodyBytes   int64 = 1 << 20
	DefaultEventHeartbeat       = 15 * time.Second
)

// Options tunes the handlers built by NewMux. Zero values select defaults;
// CORS stays off unless CORSEnabled is set.
type Options struct {
	// MaxBodyBytes limits PUT /params bodies.
	MaxBodyBytes int64
	// EventHeartbeat is the interval of keep-alive comments on /events and
	// of pings on /ws.
	EventHeartbeat time.Duration

	CORSEnabled bool
	CORSOrigins []string
	CORSMethods []string
	CORSHeaders []string
}

// settings is read by NewMux and the handlers it builds. Configure before
// NewMux; it is not synchronized with running handlers.
var settings = normalize(Options{})

// Configure replaces the handler options.
func Configure(o Options) { settings = normalize(o) }

func normalize(o Options) Options {
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if o.EventHeartbeat <= 0 {
		o.EventHeartbeat = DefaultEventHeartbeat
	}
	o.CORSOrigins = append([]string(nil), o.CORSOrigins...)
	o.CORSMethods = append([]string(nil), o.CORSMethods...)
	o.CORSHeaders = append([]string(nil), o.CORSHeaders...)
	return o
}
