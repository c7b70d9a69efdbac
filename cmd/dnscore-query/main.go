package main

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/asyncdns/dnscore"
	"github.com/asyncdns/dnscore/hostsfile"
	"github.com/asyncdns/dnscore/resolvconf"
)

var (
	resolvConfPath string
	hostsPath      string
	qtype          string
	timeout        time.Duration
	attempts       int
	rotate         bool
)

func main() {
	cmd := &cobra.Command{
		Use:   "dnscore-query <name>",
		Short: "Resolve a single name using the dnscore scheduler",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0])
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVar(&resolvConfPath, "resolv-conf", "/etc/resolv.conf", "resolver configuration file")
	cmd.Flags().StringVar(&hostsPath, "hosts", "/etc/hosts", "hosts file")
	cmd.Flags().StringVar(&qtype, "type", "A", "record type (A, AAAA, PTR)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "override the resolv.conf timeout")
	cmd.Flags().IntVar(&attempts, "attempts", 0, "override the resolv.conf attempts")
	cmd.Flags().BoolVar(&rotate, "rotate", false, "force nameserver rotation on")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type resultHandler struct {
	wg sync.WaitGroup
}

func (h *resultHandler) OnResolved(op dnscore.Operation, resp *dnscore.Response) {
	defer h.wg.Done()
	fmt.Println(resp.Msg().String())
}

func (h *resultHandler) OnFailure(op dnscore.Operation, rcode int) {
	defer h.wg.Done()
	logrus.WithField("rcode", rcode).Error("query failed")
}

func (h *resultHandler) OnTimeout(op dnscore.Operation) {
	defer h.wg.Done()
	logrus.Error("query timed out")
}

func (h *resultHandler) OnCancelled(op dnscore.Operation) {
	defer h.wg.Done()
	logrus.Warn("query cancelled")
}

func run(name string) error {
	settings, err := resolvconf.Load(resolvConfPath, false)
	if err != nil {
		logrus.WithError(err).Warn("failed to load resolver configuration, proceeding with defaults")
		settings = &resolvconf.Settings{Nameservers: []net.IP{net.ParseIP("8.8.8.8")}, Timeout: 1, Attempts: 2}
	}

	var records []hostsfile.Record
	if recs, err := hostsfile.Load(hostsPath); err != nil {
		logrus.WithError(err).Debug("failed to load hosts file")
	} else {
		records = recs
	}

	opt := dnscore.ContextOptions{
		Nameservers:  settings.Nameservers,
		HostsRecords: records,
		Attempts:     settings.Attempts,
		Timeout:      time.Duration(settings.Timeout) * time.Second,
		Rotate:       settings.Rotate || rotate,
	}
	if timeout > 0 {
		opt.Timeout = timeout
	}
	if attempts > 0 {
		opt.Attempts = attempts
	}

	ctx, err := dnscore.New(opt)
	if err != nil {
		return err
	}
	defer ctx.Close()

	t, ok := dns.StringToType[qtype]
	if !ok {
		return fmt.Errorf("unrecognised record type %q", qtype)
	}

	h := &resultHandler{}
	h.wg.Add(1)

	if t == dns.TypePTR {
		ip := net.ParseIP(name)
		if ip == nil {
			return fmt.Errorf("%q is not an IP address", name)
		}
		if _, err := ctx.QueryReverse(ip, h); err != nil {
			return err
		}
	} else {
		ctx.Query(name, t, h)
	}

	h.wg.Wait()
	return nil
}
