package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as a TOML-like summary
// to w. This powers the "config show" command.
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration")

	if r.ConfigPath != "" {
		ew.printf(" (%s)", r.ConfigPath)
	}

	ew.printf("\n\n")
	ew.printf("agavedb   = %q\n", r.AgaveDB)
	ew.printf("host_url  = %q\n", r.HostURL)
	ew.printf("log_level = %q\n", r.LogLevel)
	ew.printf("timeout   = %q\n", r.Timeout.String())
	ew.printf("\n[endpoints]\n")
	ew.printf("  token    = %q\n", r.Endpoints.Token)
	ew.printf("  clients  = %q\n", r.Endpoints.Clients)
	ew.printf("  systems  = %q\n", r.Endpoints.Systems)
	ew.printf("  listings = %q\n", r.Endpoints.Listings)
	ew.printf("  media    = %q\n", r.Endpoints.Media)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
