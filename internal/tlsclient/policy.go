package tlsclient

import (
	"crypto/tls"
	"fmt"
	"strings"
)

// TLSPolicy restricts the protocols and cipher suites a client may negotiate.
// An empty list means the platform default; a non-empty list is intersected
// with what the platform supports and unsupported names are ignored.
type TLSPolicy struct {
	Protocols    []string `yaml:"protocols" json:"protocols,omitempty"`
	CipherSuites []string `yaml:"cipher_suites" json:"cipher_suites,omitempty"`
}

// supportedProtocols lists the versions crypto/tls can negotiate, oldest first
var supportedProtocols = []struct {
	name    string
	version uint16
}{
	{"TLSv1", tls.VersionTLS10},
	{"TLSv1.1", tls.VersionTLS11},
	{"TLSv1.2", tls.VersionTLS12},
	{"TLSv1.3", tls.VersionTLS13},
}

// protocolVersion maps names such as "TLSv1.2", "TLS1.2" or "VersionTLS12"
// to a crypto/tls version
func protocolVersion(name string) (uint16, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "version")
	n = strings.NewReplacer("v", "", ".", "", "_", "", " ", "").Replace(n)

	switch n {
	case "tls1", "tls10":
		return tls.VersionTLS10, true
	case "tls11":
		return tls.VersionTLS11, true
	case "tls12":
		return tls.VersionTLS12, true
	case "tls13":
		return tls.VersionTLS13, true
	}
	return 0, false
}

// EnabledProtocols returns the canonical names of the allow-listed protocols
// the platform supports, oldest first. It returns nil when the platform
// default applies.
func (p TLSPolicy) EnabledProtocols() []string {
	if len(p.Protocols) == 0 {
		return nil
	}

	allowed := make(map[uint16]bool)
	for _, name := range p.Protocols {
		if v, ok := protocolVersion(name); ok {
			allowed[v] = true
		}
	}

	var enabled []string
	for _, sp := range supportedProtocols {
		if allowed[sp.version] {
			enabled = append(enabled, sp.name)
		}
	}
	return enabled
}

// EnabledCipherSuites returns the allow-listed cipher suites crypto/tls
// considers secure, in the platform preference order. It returns nil when
// the platform default applies.
func (p TLSPolicy) EnabledCipherSuites() []string {
	ids := p.cipherSuiteIDs()
	if len(ids) == 0 {
		return nil
	}

	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, tls.CipherSuiteName(id))
	}
	return names
}

func (p TLSPolicy) cipherSuiteIDs() []uint16 {
	if len(p.CipherSuites) == 0 {
		return nil
	}

	allowed := make(map[string]bool, len(p.CipherSuites))
	for _, name := range p.CipherSuites {
		allowed[strings.ToUpper(strings.TrimSpace(name))] = true
	}

	var ids []uint16
	for _, suite := range tls.CipherSuites() {
		if allowed[suite.Name] {
			ids = append(ids, suite.ID)
		}
	}
	return ids
}

// TLSConfig builds the client TLS configuration for the policy. Hostname
// verification is always enabled.
func (p TLSPolicy) TLSConfig() *tls.Config {
	cfg := &tls.Config{}

	// crypto/tls negotiates a contiguous range, so the enabled set is
	// expressed as its lowest and highest member and versions missing from
	// the middle are rejected once the handshake settles on one.
	if enabled := p.EnabledProtocols(); len(enabled) > 0 {
		allowed := make(map[uint16]bool, len(enabled))
		for _, name := range enabled {
			v, _ := protocolVersion(name)
			allowed[v] = true
		}

		lowest, _ := protocolVersion(enabled[0])
		highest, _ := protocolVersion(enabled[len(enabled)-1])
		cfg.MinVersion = lowest
		cfg.MaxVersion = highest
		cfg.VerifyConnection = func(cs tls.ConnectionState) error {
			if !allowed[cs.Version] {
				return fmt.Errorf("negotiated %s, which is not an allowed protocol", tls.VersionName(cs.Version))
			}
			return nil
		}
	}

	if ids := p.cipherSuiteIDs(); len(ids) > 0 {
		cfg.CipherSuites = ids
	}

	return cfg
}
