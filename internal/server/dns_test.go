package server

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ainternet/ainthub/internal/db"
	"github.com/ainternet/ainthub/internal/registry"
	"github.com/miekg/dns"
	"go.uber.org/zap"
)

func newDNSFixture(t *testing.T) *DNSServer {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	reg := &registry.Registry{DB: d, Logger: zap.NewNop()}
	_, _, err = reg.Register(context.Background(), registry.Registration{
		Domain:       "gemini",
		Endpoint:     "https://gemini.example.com",
		PollEndpoint: "https://gemini.example.com/poll",
		Capabilities: []string{"translate", "code"},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	return &DNSServer{
		Registry: reg,
		Zone:     "aint",
		PublicIP: "203.0.113.10",
		Logger:   zap.NewNop(),
	}
}

func query(s *DNSServer, qname string, qtype uint16) *dns.Msg {
	m := new(dns.Msg)
	q := dns.Question{Name: qname + ".", Qtype: qtype, Qclass: dns.ClassINET}
	s.answerQuestion(m, q, strings.ToLower(qname))
	return m
}

func TestDNSAgentTXT(t *testing.T) {
	s := newDNSFixture(t)

	m := query(s, "gemini.aint", dns.TypeTXT)
	if m.Rcode != dns.RcodeSuccess {
		t.Fatalf("rcode = %d", m.Rcode)
	}
	if len(m.Answer) != 1 {
		t.Fatalf("expected 1 answer, got %d", len(m.Answer))
	}
	txt, ok := m.Answer[0].(*dns.TXT)
	if !ok {
		t.Fatalf("answer is %T, want *dns.TXT", m.Answer[0])
	}

	joined := strings.Join(txt.Txt, " ")
	for _, want := range []string{
		"endpoint=https://gemini.example.com",
		"trust=0.30",
		"tier=sandbox",
		"i_poll=https://gemini.example.com/poll",
		"capabilities=translate,code",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("TXT %q missing %q", joined, want)
		}
	}
}

func TestDNSCaseInsensitive(t *testing.T) {
	s := newDNSFixture(t)

	m := query(s, "GEMINI.AINT", dns.TypeTXT)
	if m.Rcode != dns.RcodeSuccess || len(m.Answer) != 1 {
		t.Errorf("rcode = %d, answers = %d", m.Rcode, len(m.Answer))
	}
}

func TestDNSUnknownDomain(t *testing.T) {
	s := newDNSFixture(t)

	m := query(s, "ghost.aint", dns.TypeTXT)
	if m.Rcode != dns.RcodeNameError {
		t.Errorf("rcode = %d, want NXDOMAIN", m.Rcode)
	}
}

func TestDNSSuspendedDomainIsNXDOMAIN(t *testing.T) {
	s := newDNSFixture(t)

	if err := s.Registry.SetStatus(context.Background(), "gemini.aint", "suspended"); err != nil {
		t.Fatalf("suspend: %v", err)
	}

	m := query(s, "gemini.aint", dns.TypeTXT)
	if m.Rcode != dns.RcodeNameError {
		t.Errorf("rcode = %d, want NXDOMAIN", m.Rcode)
	}
}

func TestDNSOutOfZone(t *testing.T) {
	s := newDNSFixture(t)

	m := query(s, "example.com", dns.TypeA)
	if m.Rcode != dns.RcodeNameError {
		t.Errorf("rcode = %d, want NXDOMAIN", m.Rcode)
	}
}

func TestDNSApexRecords(t *testing.T) {
	s := newDNSFixture(t)

	m := query(s, "aint", dns.TypeSOA)
	if len(m.Answer) != 1 {
		t.Fatalf("SOA answers = %d", len(m.Answer))
	}
	if _, ok := m.Answer[0].(*dns.SOA); !ok {
		t.Errorf("answer is %T, want *dns.SOA", m.Answer[0])
	}

	m = query(s, "aint", dns.TypeNS)
	if len(m.Answer) != 1 {
		t.Fatalf("NS answers = %d", len(m.Answer))
	}

	m = query(s, "aint", dns.TypeA)
	if len(m.Answer) != 1 {
		t.Fatalf("A answers = %d", len(m.Answer))
	}
	a, ok := m.Answer[0].(*dns.A)
	if !ok || a.A.String() != "203.0.113.10" {
		t.Errorf("apex A = %v", m.Answer[0])
	}
}
