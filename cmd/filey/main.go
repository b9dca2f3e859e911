// filey shares files with other filey instances on the local network.
//
// Sub-commands:
//
//	filey serve                          Run the peer server (default)
//	filey peers                          Scan local subnets for peers
//	filey ls <address>                   List a peer's public files
//	filey get <address> <file-id>        Download a file from a peer
//	filey share [-private] <path>...     Add files to the local catalog
//	filey visibility <file-id> <v>       Set a file public or private
//	filey rm <file-id>                   Remove a file from the catalog
//	filey local [-prune]                 List the local catalog
//	filey ips                            Show local subnet candidates
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/VintageWander/filey/internal/catalog"
	"github.com/VintageWander/filey/internal/config"
	"github.com/VintageWander/filey/internal/logging"
	"github.com/VintageWander/filey/internal/peer"
	"github.com/VintageWander/filey/internal/storage"
	"github.com/VintageWander/filey/pkg/models"
	"github.com/VintageWander/filey/pkg/protocol"
)

func main() {
	cmd, args := "serve", []string{}
	if len(os.Args) > 1 {
		cmd, args = os.Args[1], os.Args[2:]
	}

	switch cmd {
	case "serve":
		cmdServe(args)
	case "peers":
		cmdPeers(args)
	case "ls":
		cmdList(args)
	case "get":
		cmdGet(args)
	case "share":
		cmdShare(args)
	case "visibility":
		cmdVisibility(args)
	case "rm":
		cmdRemove(args)
	case "local":
		cmdLocal(args)
	case "ips":
		cmdIPs(args)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: filey <serve|peers|ls|get|share|visibility|rm|local|ips> [flags] [args]")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// loadConfig reads the environment and initializes logging. CLI commands
// other than serve log at warn so their output stays readable.
func loadConfig(quiet bool) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	level := cfg.LogLevel
	if quiet && level == "info" {
		level = "warn"
	}
	if err := logging.Init(logging.Config{Level: level, Format: cfg.LogFormat, OutputPath: "stderr"}); err != nil {
		fatal(err)
	}
	return cfg
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "Listen address (overrides LISTEN_ADDR)")
	fs.Parse(args)

	cfg := loadConfig(false)
	defer logging.Sync()
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	fx.New(appOptions(cfg)).Run()
}

func newClient(cfg *config.Config, timeout time.Duration) *peer.Client {
	if timeout <= 0 {
		timeout = cfg.PeerTimeout
	}
	return peer.New(peer.Config{Timeout: timeout})
}

func cmdPeers(args []string) {
	fs := flag.NewFlagSet("peers", flag.ExitOnError)
	timeout := fs.Duration("timeout", 0, "Per-host probe timeout (default PEER_TIMEOUT)")
	concurrency := fs.Int("concurrency", 0, "Concurrent probes (default SCAN_CONCURRENCY)")
	fs.Parse(args)

	cfg := loadConfig(true)
	if *concurrency <= 0 {
		*concurrency = cfg.ScanConcurrency
	}

	scanner := peer.NewScanner(newClient(cfg, *timeout), *concurrency)
	peers, err := scanner.Scan(context.Background())
	if err != nil {
		fatal(err)
	}
	if len(peers) == 0 {
		fmt.Println("No peers found.")
		return
	}

	fmt.Printf("%-20s  %s\n", "ADDRESS", "OS")
	for _, p := range peers {
		fmt.Printf("%-20s  %s\n", p.Address, p.OSType)
	}
}

func cmdList(args []string) {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	timeout := fs.Duration("timeout", 0, "Request timeout (default PEER_TIMEOUT)")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: filey ls <address>")
		os.Exit(2)
	}

	cfg := loadConfig(true)
	files, err := newClient(cfg, *timeout).ListFiles(context.Background(), fs.Arg(0))
	if err != nil {
		fatal(err)
	}
	if len(files) == 0 {
		fmt.Println("No shared files.")
		return
	}

	fmt.Printf("%-36s  %-28s  %s\n", "FILE ID", "MIME", "NAME")
	for _, f := range files {
		fmt.Printf("%-36s  %-28s  %s\n", f.ID, f.Mime, f.Name)
	}
}

func cmdGet(args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	mode := fs.String("mode", "download", "Disposition to request: view or download")
	output := fs.String("o", "", "Output path (default: the name sent by the peer)")
	offset := fs.Int64("offset", 0, "First byte to fetch")
	length := fs.Int64("length", 0, "Number of bytes to fetch (0 reads to the end)")
	fs.Parse(args)
	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: filey get [flags] <address> <file-id>")
		os.Exit(2)
	}

	m, err := protocol.ParseMode(*mode)
	if err != nil {
		fatal(err)
	}
	id, err := uuid.Parse(fs.Arg(1))
	if err != nil {
		fatal(fmt.Errorf("invalid file id %q", fs.Arg(1)))
	}

	cfg := loadConfig(true)
	dir := "."
	if *output != "" {
		dir = filepath.Dir(*output)
	}
	tmp, err := os.CreateTemp(dir, ".filey-*.part")
	if err != nil {
		fatal(err)
	}

	d, err := newClient(cfg, 0).Download(context.Background(), fs.Arg(0), id,
		peer.DownloadOptions{Mode: m, Offset: *offset, Length: *length}, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		fatal(err)
	}

	dest := *output
	if dest == "" {
		dest = filepath.Base(d.Name)
		if dest == "." || dest == string(filepath.Separator) || dest == "" {
			dest = id.String()
		}
	}
	os.Chmod(tmp.Name(), 0o644)
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		fatal(err)
	}

	fmt.Printf("Saved %s (%s, %d bytes", dest, d.Mime, d.Written)
	if d.Partial {
		fmt.Print(", partial")
	}
	fmt.Println(")")
}

// withCatalog opens the configured catalog, runs fn and closes it again.
func withCatalog(fn func(ctx context.Context, cat *catalog.Catalog) error) {
	cfg := loadConfig(true)
	defer logging.Sync()

	var cat *catalog.Catalog
	app := fx.New(catalogOptions(cfg), fx.NopLogger, fx.Populate(&cat))
	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		fatal(err)
	}
	err := fn(ctx, cat)
	if serr := app.Stop(ctx); err == nil {
		err = serr
	}
	if err != nil {
		fatal(err)
	}
}

// draftFor turns a command line argument into a catalog draft. Host paths
// are made absolute; references with a scheme are kept verbatim.
func draftFor(arg string, v models.Visibility) (models.FileDraft, error) {
	if scheme, _ := storage.SplitRef(arg); scheme != "" {
		return models.FileDraft{Name: arg, Visibility: v, Path: arg}, nil
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return models.FileDraft{}, err
	}
	return models.FileDraft{Name: filepath.Base(abs), Visibility: v, Path: abs}, nil
}

func cmdShare(args []string) {
	fs := flag.NewFlagSet("share", flag.ExitOnError)
	private := fs.Bool("private", false, "Add the files as private")
	fs.Parse(args)
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: filey share [-private] <path>...")
		os.Exit(2)
	}

	v := models.Public
	if *private {
		v = models.Private
	}
	drafts := make([]models.FileDraft, 0, fs.NArg())
	for _, arg := range fs.Args() {
		d, err := draftFor(arg, v)
		if err != nil {
			fatal(err)
		}
		drafts = append(drafts, d)
	}

	withCatalog(func(ctx context.Context, cat *catalog.Catalog) error {
		recs, err := cat.Upsert(ctx, drafts)
		if err != nil {
			return err
		}
		printRecords(recs)
		return nil
	})
}

func cmdVisibility(args []string) {
	fs := flag.NewFlagSet("visibility", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: filey visibility <file-id> <public|private>")
		os.Exit(2)
	}
	id, err := uuid.Parse(fs.Arg(0))
	if err != nil {
		fatal(fmt.Errorf("invalid file id %q", fs.Arg(0)))
	}
	v, err := models.ParseVisibility(fs.Arg(1))
	if err != nil {
		fatal(err)
	}

	withCatalog(func(ctx context.Context, cat *catalog.Catalog) error {
		if err := cat.SetVisibility(ctx, id, v); err != nil {
			return err
		}
		fmt.Printf("%s is now %s\n", id, v)
		return nil
	})
}

func cmdRemove(args []string) {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: filey rm <file-id>...")
		os.Exit(2)
	}
	ids := make([]uuid.UUID, 0, fs.NArg())
	for _, arg := range fs.Args() {
		id, err := uuid.Parse(arg)
		if err != nil {
			fatal(fmt.Errorf("invalid file id %q", arg))
		}
		ids = append(ids, id)
	}

	withCatalog(func(ctx context.Context, cat *catalog.Catalog) error {
		for _, id := range ids {
			if err := cat.Delete(ctx, id); err != nil {
				return err
			}
			fmt.Printf("Removed %s\n", id)
		}
		return nil
	})
}

func cmdLocal(args []string) {
	fs := flag.NewFlagSet("local", flag.ExitOnError)
	prune := fs.Bool("prune", false, "Drop entries whose content no longer exists")
	fs.Parse(args)

	withCatalog(func(ctx context.Context, cat *catalog.Catalog) error {
		if *prune {
			removed, err := cat.Prune(ctx)
			if err != nil {
				return err
			}
			for _, r := range removed {
				fmt.Printf("Pruned %s  %s\n", r.ID, r.Path)
			}
		}
		recs, err := cat.List(ctx)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("Catalog is empty.")
			return nil
		}
		printRecords(recs)
		return nil
	})
}

func printRecords(recs []models.FileRecord) {
	fmt.Printf("%-36s  %-8s  %-28s  %s\n", "FILE ID", "VISIBLE", "MIME", "PATH")
	for _, r := range recs {
		fmt.Printf("%-36s  %-8s  %-28s  %s\n", r.ID, r.Visibility, r.Mime, r.Path)
	}
}

func cmdIPs(args []string) {
	fs := flag.NewFlagSet("ips", flag.ExitOnError)
	fs.Parse(args)

	ips, err := peer.LocalSubnetCandidates()
	if err != nil {
		fatal(err)
	}
	if len(ips) == 0 {
		fmt.Println("No private IPv4 addresses found.")
		return
	}
	for _, ip := range ips {
		fmt.Println(ip)
	}
}
