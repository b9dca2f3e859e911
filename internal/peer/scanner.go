package peer

import (
	"bytes"
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/VintageWander/filey/internal/logging"
	"github.com/VintageWander/filey/internal/metrics"
	"github.com/VintageWander/filey/pkg/protocol"
)

// Prober checks whether an address runs filey.
type Prober interface {
	Probe(ctx context.Context, address string) (protocol.PeerInfo, error)
}

// Scanner sweeps local subnets for peers.
type Scanner struct {
	prober      Prober
	concurrency int
	candidates  func() ([]string, error)
	log         *zap.Logger
}

// NewScanner creates a scanner running at most concurrency probes at once.
func NewScanner(p Prober, concurrency int) *Scanner {
	if concurrency <= 0 {
		concurrency = 64
	}
	return &Scanner{
		prober:      p,
		concurrency: concurrency,
		candidates:  LocalSubnetCandidates,
		log:         logging.Named("scanner"),
	}
}

// Scan probes every host of every local subnet candidate.
func (s *Scanner) Scan(ctx context.Context) ([]protocol.PeerInfo, error) {
	bases, err := s.candidates()
	if err != nil {
		return nil, err
	}
	var hosts []string
	for _, base := range bases {
		h, err := SubnetHosts(base)
		if err != nil {
			continue
		}
		hosts = append(hosts, h...)
	}
	s.log.Debug("scanning", zap.Strings("bases", bases), zap.Int("hosts", len(hosts)))
	return s.ScanHosts(ctx, hosts)
}

// ScanHosts probes hosts and returns the peers that answered, sorted by
// address. Unreachable hosts are left out; only cancellation of ctx is an
// error.
func (s *Scanner) ScanHosts(ctx context.Context, hosts []string) ([]protocol.PeerInfo, error) {
	start := time.Now()
	var (
		mu    sync.Mutex
		found = make(map[string]protocol.PeerInfo)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, host := range hosts {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			info, err := s.prober.Probe(gctx, host)
			if err != nil {
				return nil
			}
			mu.Lock()
			found[info.Address] = info
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	peers := make([]protocol.PeerInfo, 0, len(found))
	for _, p := range found {
		peers = append(peers, p)
	}
	sort.Slice(peers, func(i, j int) bool {
		return lessAddr(peers[i].Address, peers[j].Address)
	})

	metrics.RecordScan(time.Since(start), len(peers))
	s.log.Info("scan finished", zap.Int("probed", len(hosts)), zap.Int("peers", len(peers)), zap.Duration("took", time.Since(start)))
	return peers, nil
}

// lessAddr orders IPv4 addresses numerically and anything else lexically.
func lessAddr(a, b string) bool {
	ia, ib := net.ParseIP(a).To4(), net.ParseIP(b).To4()
	if ia != nil && ib != nil {
		return bytes.Compare(ia, ib) < 0
	}
	return a < b
}
