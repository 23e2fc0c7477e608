package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/inhies/go-bytesize"

	"github.com/flowprofiler/flowprofiler/internal/aggregate"
	"github.com/flowprofiler/flowprofiler/internal/config"
	"github.com/flowprofiler/flowprofiler/internal/homenet"
	"github.com/flowprofiler/flowprofiler/internal/ingest/flavor"
	ikafka "github.com/flowprofiler/flowprofiler/internal/ingest/kafka"
	"github.com/flowprofiler/flowprofiler/internal/ingest/lines"
	"github.com/flowprofiler/flowprofiler/internal/logx"
	"github.com/flowprofiler/flowprofiler/internal/pipeline"
	"github.com/flowprofiler/flowprofiler/internal/profile"
	"github.com/flowprofiler/flowprofiler/internal/store"
	"github.com/flowprofiler/flowprofiler/internal/store/boltstore"
	"github.com/flowprofiler/flowprofiler/internal/store/memstore"
	"github.com/flowprofiler/flowprofiler/internal/timewindow"
)

const defaultConfigLoc = `/opt/flowprofiler/etc/flowprofiler.conf`

var (
	confLoc  = flag.String("config-file", defaultConfigLoc, "Location for configuration file")
	storeLoc = flag.String("store", "", "Path to a bbolt database file; empty uses an in-memory store")
	syslog   = flag.String("syslog", "", "host:port of an RFC5424 syslog collector to additionally ship logs to")

	kafkaBrokers = flag.String("kafka-brokers", "", "Comma-separated Kafka broker addresses; when set, ingest from Kafka instead of stdin")
	kafkaTopic   = flag.String("kafka-topic", "flows", "Kafka topic to consume")
	kafkaGroup   = flag.String("kafka-group", "flowprofiler", "Kafka consumer group id")
)

func main() {
	flag.Parse()

	lg := logx.New("flowprofiler", logx.INFO)
	lg.AddRelay(logx.ChannelRelay{Lines: stderrSink()})

	if *syslog != "" {
		conn, err := net.Dial("udp", *syslog)
		if err != nil {
			lg.Warnf("could not connect syslog relay to %s: %v", *syslog, err)
		} else {
			lg.AddRelay(logx.SyslogRelay{Writer: conn, Hostname: hostname(), AppName: "flowprofiler"})
		}
	}

	cfg, err := config.Load(*confLoc)
	if err != nil {
		lg.Criticalf("loading config %s: %v", *confLoc, err)
		os.Exit(1)
	}

	s, closeStore, err := openStore(*storeLoc)
	if err != nil {
		lg.Criticalf("opening store: %v", err)
		os.Exit(1)
	}
	defer closeStore()
	logStoreSize(lg, *storeLoc, s)

	hn, err := homenet.New(cfg.AnalysisDirection, cfg.HomeNetwork)
	if err != nil {
		lg.Criticalf("configuring home-net policy: %v", err)
		os.Exit(1)
	}

	pcfg := pipeline.Config{
		NumStoreWorkers: 4,
		Store:           s,
		HomeNet:         hn,
		Profiles:        profile.NewRegistry(s, 0),
		Windows:         timewindow.NewManager(s, 0),
		Aggregators:     aggregate.New(s, 0),
		Log:             lg,
		Width:           cfg.TimeWindowWidth,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *kafkaBrokers != "" {
		if err := runKafka(ctx, pcfg, cfg, lg); err != nil {
			lg.Criticalf("kafka ingest failed: %v", err)
			os.Exit(1)
		}
		return
	}

	if err := runStdin(ctx, pcfg, cfg, lg); err != nil {
		lg.Criticalf("stdin ingest failed: %v", err)
		os.Exit(1)
	}
}

// runStdin ingests newline-delimited text records from stdin,
// autodetecting the flavor from the first line per §4.1 and consuming
// that line as a CSV/TSV header rather than emitting it as a Flow.
func runStdin(ctx context.Context, pcfg pipeline.Config, cfg config.Config, lg *logx.Logger) error {
	r, err := lines.Open(os.Stdin)
	if err != nil {
		if err == lines.ErrEmpty {
			lg.Warnf("stdin produced no input")
			return nil
		}
		return err
	}

	header, err := r.Next()
	if err != nil {
		return fmt.Errorf("reading first line: %w", err)
	}

	fl, err := flavor.Detect(header)
	if err != nil {
		return fmt.Errorf("detecting input flavor: %w", err)
	}
	lg.Infof("detected input flavor: %s", fl)

	switch fl {
	case flavor.Argus:
		pcfg.Parser = flavor.NewArgusParser(string(header), ",", cfg.TimestampFormat)
	case flavor.ZeekTabs:
		pcfg.Parser = flavor.NewZeekTabsParser(string(header))
	case flavor.Suricata:
		pcfg.Parser = flavor.SuricataParser{}
	default:
		return fmt.Errorf("unsupported flavor for stdin ingest: %s", fl)
	}
	// Suricata's first line is itself a record, not a header; replay it.
	replay := fl == flavor.Suricata

	p := pipeline.New(pcfg)

	textLines := make(chan []byte, 256)
	go func() {
		defer close(textLines)
		if replay {
			select {
			case textLines <- header:
			case <-ctx.Done():
				return
			}
		}
		for {
			ln, err := r.Next()
			if err != nil {
				return
			}
			select {
			case textLines <- ln:
			case <-ctx.Done():
				return
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	if err := p.Lines(ctx, textLines); err != nil {
		return err
	}
	return <-errCh
}

// runKafka ingests from a Kafka topic; every message is assumed to be a
// Suricata JSON flow event, the only flavor that requires no header.
func runKafka(ctx context.Context, pcfg pipeline.Config, cfg config.Config, lg *logx.Logger) error {
	pcfg.Parser = flavor.SuricataParser{}
	p := pipeline.New(pcfg)

	src, err := ikafka.Open(ikafka.Config{
		Brokers: splitCSV(*kafkaBrokers),
		Topic:   *kafkaTopic,
		Group:   *kafkaGroup,
	}, lg)
	if err != nil {
		return err
	}
	defer src.Close()

	errCh := make(chan error, 2)
	go func() { errCh <- src.Run(ctx) }()
	go func() { errCh <- p.Run(ctx) }()

	if err := p.Lines(ctx, src.Records); err != nil {
		return err
	}
	return <-errCh
}

func openStore(path string) (store.Store, func(), error) {
	if path == "" {
		return memstore.New(), func() {}, nil
	}
	bs, err := boltstore.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return bs, func() { bs.Close() }, nil
}

// logStoreSize reports the on-disk size of a bbolt-backed store at
// startup; the in-memory store has no file to size.
func logStoreSize(lg *logx.Logger, path string, s store.Store) {
	bs, ok := s.(*boltstore.Store)
	if !ok {
		return
	}
	n, err := bs.Size()
	if err != nil {
		lg.Warnf("stat store %s: %v", path, err)
		return
	}
	lg.Infof("opened store %s (%s)", path, bytesize.New(float64(n)))
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "flowprofiler"
	}
	return h
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

func stderrSink() chan<- string {
	lines := make(chan string, 64)
	go func() {
		for ln := range lines {
			fmt.Fprintln(os.Stderr, ln)
		}
	}()
	return lines
}
