package resilience

import (
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
)

// DefaultInterceptionMarkers are type-name fragments of round trippers that
// observe or rewrite traffic.
var DefaultInterceptionMarkers = []string{"otelhttp", "intercept", "recorder", "vcr", "hijack"}

// DetectorConfig tells the detector what the operator knows about the
// environment.
type DetectorConfig struct {
	// Compromised marks the primary transport as untrustworthy outright.
	Compromised bool
	// DisableBypass forbids use of the bypass transport.
	DisableBypass bool
	// Markers overrides DefaultInterceptionMarkers when non-empty.
	Markers []string
}

// Classification is the detector's choice for one attempt.
type Classification struct {
	// Transport to use. Nil when Compromised.
	Transport   Transport
	Compromised bool
	Reason      string
}

// Detector picks the transport for each attempt.
type Detector struct {
	cfg     DetectorConfig
	primary *PrimaryTransport
	bypass  Transport
	ledger  *Ledger
	logger  *slog.Logger
}

// NewDetector creates a detector. bypass is ignored when cfg.DisableBypass
// is set. logger may be nil.
func NewDetector(cfg DetectorConfig, primary *PrimaryTransport, bypass Transport, ledger *Ledger, logger *slog.Logger) *Detector {
	if len(cfg.Markers) == 0 {
		cfg.Markers = DefaultInterceptionMarkers
	}
	if cfg.DisableBypass {
		bypass = nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{cfg: cfg, primary: primary, bypass: bypass, ledger: ledger, logger: logger}
}

// BypassAvailable reports whether an independent transport exists.
func (d *Detector) BypassAvailable() bool {
	return d.bypass != nil
}

// Classify selects the transport for the next attempt. A suspicious primary
// transport is avoided through the bypass when possible; without a bypass
// the attempt is reported compromised and booked on the ledger.
func (d *Detector) Classify() Classification {
	suspicious, reason := d.inspect()
	if !suspicious {
		return Classification{Transport: d.primary}
	}

	if d.bypass != nil {
		d.logger.Debug("primary transport looks intercepted, using bypass", "reason", reason)
		return Classification{Transport: d.bypass, Reason: reason}
	}

	d.logger.Warn("primary transport compromised and no bypass available", "reason", reason)
	if d.ledger != nil {
		d.ledger.RecordFailure(KindTransport)
	}
	return Classification{Compromised: true, Reason: reason}
}

func (d *Detector) inspect() (bool, string) {
	if d.cfg.Compromised {
		return true, "transport marked compromised by configuration"
	}
	return inspectRoundTripper(d.primary.Inner(), d.cfg.Markers)
}

func inspectRoundTripper(rt http.RoundTripper, markers []string) (bool, string) {
	if rt == nil {
		return false, ""
	}

	// http.RoundTripperFunc-style adapters are stubs standing in for a
	// real transport.
	if reflect.ValueOf(rt).Kind() == reflect.Func {
		return true, fmt.Sprintf("round tripper %T is a function adapter", rt)
	}

	name := strings.ToLower(fmt.Sprintf("%T", rt))
	for _, m := range markers {
		if m != "" && strings.Contains(name, strings.ToLower(m)) {
			return true, fmt.Sprintf("interception marker %q in %T", m, rt)
		}
	}
	return false, ""
}
