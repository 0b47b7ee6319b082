package server

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/ainternet/ainthub/internal/fault"
	"github.com/ainternet/ainthub/internal/logging"
	"github.com/ainternet/ainthub/internal/models"
	"github.com/ainternet/ainthub/internal/registry"
	"github.com/miekg/dns"
	"go.uber.org/zap"
)

// DNSServer answers authoritative queries for the aint zone. TXT records
// expose each registered agent's endpoint, trust score, tier, and
// capabilities; A queries for the zone apex return the hub's public IP.
type DNSServer struct {
	Registry  *registry.Registry
	Zone      string // zone apex, e.g. "aint"
	PublicIP  string
	Logger    *zap.Logger
	udpServer *dns.Server
	tcpServer *dns.Server
}

// Start begins listening for DNS queries on the specified UDP and TCP ports.
func (s *DNSServer) Start(udpPort, tcpPort int) error {
	handler := dns.HandlerFunc(s.handleDNS)

	s.udpServer = &dns.Server{
		Addr:    fmt.Sprintf(":%d", udpPort),
		Net:     "udp",
		Handler: handler,
	}

	s.tcpServer = &dns.Server{
		Addr:    fmt.Sprintf(":%d", tcpPort),
		Net:     "tcp",
		Handler: handler,
	}

	udpErrCh := make(chan error, 1)
	tcpErrCh := make(chan error, 1)

	go func() {
		s.Logger.Info("starting dns server", logging.Net("udp"), logging.Port(udpPort))
		if err := s.udpServer.ListenAndServe(); err != nil {
			udpErrCh <- err
		}
		close(udpErrCh)
	}()

	go func() {
		s.Logger.Info("starting dns server", logging.Net("tcp"), logging.Port(tcpPort))
		if err := s.tcpServer.ListenAndServe(); err != nil {
			tcpErrCh <- err
		}
		close(tcpErrCh)
	}()

	return nil
}

// Shutdown gracefully stops the DNS servers.
func (s *DNSServer) Shutdown(ctx context.Context) {
	if s.udpServer != nil {
		if err := s.udpServer.ShutdownContext(ctx); err != nil {
			s.Logger.Warn("dns udp shutdown error", zap.Error(err))
		}
	}
	if s.tcpServer != nil {
		if err := s.tcpServer.ShutdownContext(ctx); err != nil {
			s.Logger.Warn("dns tcp shutdown error", zap.Error(err))
		}
	}
}

func (s *DNSServer) handleDNS(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(r)
	m.Authoritative = true

	for _, q := range r.Question {
		qname := strings.ToLower(strings.TrimSuffix(q.Name, "."))
		s.answerQuestion(m, q, qname)
	}

	if err := w.WriteMsg(m); err != nil {
		s.Logger.Debug("failed to write DNS response", zap.Error(err))
	}
}

func (s *DNSServer) answerQuestion(m *dns.Msg, q dns.Question, qname string) {
	if qname != s.Zone && !strings.HasSuffix(qname, "."+s.Zone) {
		m.Rcode = dns.RcodeNameError
		return
	}

	if q.Qtype == dns.TypeSOA {
		soa := &dns.SOA{
			Hdr:     dns.RR_Header{Name: s.Zone + ".", Rrtype: dns.TypeSOA, Class: dns.ClassINET, Ttl: 300},
			Ns:      "ns1." + s.Zone + ".",
			Mbox:    "hostmaster." + s.Zone + ".",
			Serial:  1,
			Refresh: 3600,
			Retry:   600,
			Expire:  604800,
			Minttl:  60,
		}
		m.Answer = append(m.Answer, soa)
		return
	}

	if q.Qtype == dns.TypeNS && qname == s.Zone {
		ns := &dns.NS{
			Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeNS, Class: dns.ClassINET, Ttl: 300},
			Ns:  "ns1." + s.Zone + ".",
		}
		m.Answer = append(m.Answer, ns)
		return
	}

	if q.Qtype == dns.TypeA && (qname == s.Zone || qname == "ns1."+s.Zone) && s.PublicIP != "" {
		rr := &dns.A{
			Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 300},
			A:   net.ParseIP(s.PublicIP),
		}
		m.Answer = append(m.Answer, rr)
		return
	}

	if qname == s.Zone {
		return
	}

	// Anything below the apex is an agent domain lookup.
	agent, err := s.Registry.Resolve(context.Background(), qname)
	if err != nil {
		if fault.IsKind(err, fault.NotFound) {
			m.Rcode = dns.RcodeNameError
			return
		}
		s.Logger.Error("dns resolve failed", logging.QName(qname), zap.Error(err))
		m.Rcode = dns.RcodeServerFailure
		return
	}
	if agent.Status != models.StatusActive {
		m.Rcode = dns.RcodeNameError
		return
	}

	if q.Qtype == dns.TypeTXT || q.Qtype == dns.TypeANY {
		rr := &dns.TXT{
			Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: 300},
			Txt: agentTXT(agent),
		}
		m.Answer = append(m.Answer, rr)
	}

	s.Logger.Debug("dns query answered",
		logging.QName(qname),
		logging.QType(dns.TypeToString[q.Qtype]))
}

// agentTXT renders the record fields a DNS client can consume.
func agentTXT(a *models.Agent) []string {
	txt := []string{
		"endpoint=" + a.Endpoint,
		fmt.Sprintf("trust=%.2f", a.TrustScore),
		"tier=" + a.Tier,
	}
	if a.PollEndpoint != "" {
		txt = append(txt, "i_poll="+a.PollEndpoint)
	}
	if len(a.Capabilities) > 0 {
		txt = append(txt, "capabilities="+strings.Join(a.Capabilities, ","))
	}
	return txt
}
